package panel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/trafficcam/internal/geo"
	"github.com/yourusername/trafficcam/internal/poi"
	"github.com/yourusername/trafficcam/internal/results"
	"go.uber.org/zap"
)

// Select는 id에 해당하는 항목을 선택합니다. 빈 id는 선택 해제입니다.
//
// 같은 id를 다시 선택해도 전체 과정(타이머 중지, 즉시 fetch, 스케줄러 재시작)을 그대로 수행합니다.
// 결과 집합에 없는 id는 선택을 해제하고 ErrNotFound를 반환합니다.
func (p *Panel) Select(ctx context.Context, id string) error {
	if err := acquire(ctx, p.selectSem); err != nil {
		return err
	}

	change, found, err := p.processSelection(ctx, id)
	if err != nil {
		release(p.selectSem)
		return err
	}

	// 이벤트는 selectSem 안에서 선택 순서대로 전달됩니다
	p.emitSelected(change)
	release(p.selectSem)

	if id != "" && !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Deselect는 현재 선택을 해제합니다
func (p *Panel) Deselect(ctx context.Context) error {
	return p.Select(ctx, "")
}

// processSelection은 selectSem을 잡은 상태에서 호출됩니다
func (p *Panel) processSelection(ctx context.Context, id string) (SelectionChange, bool, error) {
	var (
		change SelectionChange
		found  bool
		cam    *poi.Camera
		gen    uint64
	)

	// 이전 선택의 타이머를 먼저 모두 중지한 뒤 선택을 바꿉니다
	err := p.loop.call(func() {
		p.guarded(func() {
			p.stopRefreshingLocked()

			var item poi.PointOfInterest
			if id != "" {
				item, found = p.results.Get(id)
			}

			change.Old = p.selected
			change.New = item

			p.selected = item
			p.camera, _ = item.(*poi.Camera)
			p.cursor = -1
			p.selGen++
			gen = p.selGen
			cam = p.camera

			p.moveToLastLocked()
		})
	})
	if err != nil {
		return change, found, err
	}

	if cam == nil {
		p.logger.Debug("Selection cleared or not a camera", zap.String("id", id), zap.Bool("found", found))
		return change, found, nil
	}

	// 가드 없이 즉시 한 번 fetch (이미지가 같으면 아무 변화 없음)
	_, _ = p.fetchFrame(ctx, cam)

	interval := p.refreshInterval(cam)
	err = p.loop.call(func() {
		p.guarded(func() {
			if p.selGen != gen {
				return
			}
			p.moveToLastLocked()
			p.armLocked(&p.snapshotTimer, interval, p.onSnapshotTick)
		})
	})
	if err != nil {
		return change, found, err
	}

	p.logger.Info("Camera selected",
		zap.String("camera_id", cam.ID()),
		zap.String("name", cam.Name()),
		zap.Duration("interval", interval),
		zap.Int("frames", cam.FrameCount()),
	)

	return change, found, nil
}

func (p *Panel) refreshInterval(cam *poi.Camera) time.Duration {
	interval := cam.RefreshInterval()
	if interval < p.minRefresh {
		return p.minRefresh
	}
	return interval
}

// Refresh는 영역의 항목을 다시 가져와 결과 집합을 통째로 교체합니다.
//
// 성공하면 결과가 비어 있어도 교체하고, 실패하면 빈 집합으로 초기화합니다.
// selectID가 주어지고 새 결과에 있으면 그 항목을 선택하며, 그렇지 않으면 선택이 해제됩니다.
// fetch 오류는 반환 Status에 담깁니다.
func (p *Panel) Refresh(ctx context.Context, box geo.BoundingBox, selectID string) Status {
	if err := acquire(ctx, p.refreshSem); err != nil {
		return failedStatus(err)
	}
	defer release(p.refreshSem)

	p.StopRefreshing()

	limit := p.MaxResults()
	batch, fetchErr := p.fetchResultSet(ctx, box, limit)

	items, total, more := capBatch(batch, limit)
	if fetchErr != nil {
		items, total, more = nil, 0, false
	}

	// Select와 같은 직렬화 안에서 선택 해제 후 교체합니다
	if err := acquire(p.ctx, p.selectSem); err != nil {
		return failedStatus(ErrClosed)
	}
	var old poi.PointOfInterest
	err := p.loop.call(func() {
		p.guarded(func() {
			p.stopRefreshingLocked()
			old = p.selected
			p.selected = nil
			p.camera = nil
			p.cursor = -1
			p.selGen++
			p.lastBox, p.hasBox = box, fetchErr == nil
		})
		p.results.Replace(items)
	})
	if err != nil {
		release(p.selectSem)
		return failedStatus(err)
	}

	if old != nil {
		p.emitSelected(SelectionChange{Old: old})
	}
	release(p.selectSem)

	status := p.buildStatus(fetchErr, total, more)

	if fetchErr == nil && selectID != "" {
		if _, ok := p.results.Get(selectID); ok {
			if err := p.Select(ctx, selectID); err != nil {
				p.logger.Warn("Auto-select after refresh failed", zap.String("id", selectID), zap.Error(err))
			}
		}
	}

	p.metrics.ObserveRefresh(status.Code.String())
	p.logger.Info("Panel refreshed",
		zap.String("box", box.String()),
		zap.String("status", status.Code.String()),
		zap.Int("count", status.Count),
		zap.Int("max_results", limit),
	)

	p.emitRefreshed()
	return status
}

// Include는 마지막으로 성공한 Refresh 영역 안의 새 항목을 결과 집합 끝에 추가합니다.
// 영역 밖이거나, 같은 ID가 이미 있거나, MaxResults에 도달했으면 추가하지 않고 false를 반환합니다.
func (p *Panel) Include(ctx context.Context, item poi.PointOfInterest) (bool, error) {
	if item == nil {
		return false, nil
	}
	if err := acquire(ctx, p.refreshSem); err != nil {
		return false, err
	}
	defer release(p.refreshSem)

	var added bool
	err := p.loop.call(func() {
		p.mu.Lock()
		box, ok := p.lastBox, p.hasBox
		p.mu.Unlock()

		if !ok || !box.Contains(item.Position()) {
			return
		}
		if _, exists := p.results.Get(item.ID()); exists {
			return
		}
		if limit := p.MaxResults(); limit > 0 && p.results.Len() >= limit {
			return
		}
		p.results.Append([]poi.PointOfInterest{item})
		added = true
	})
	if err != nil {
		return false, err
	}

	if added {
		p.logger.Info("Item included in result set",
			zap.String("id", item.ID()),
			zap.Int("count", p.results.Len()),
		)
	}
	return added, nil
}

func (p *Panel) fetchResultSet(ctx context.Context, box geo.BoundingBox, limit int) (results.Batch, error) {
	if p.resultFetcher == nil {
		return results.Batch{}, errors.New("no result fetcher configured")
	}

	batch, err := p.resultFetcher.FetchResultSet(ctx, box, limit)
	if err != nil {
		p.logger.Error("Result set fetch failed",
			zap.String("box", box.String()),
			zap.Error(err),
		)
		return results.Batch{}, err
	}
	return batch, nil
}

func (p *Panel) buildStatus(fetchErr error, total int, more bool) Status {
	if fetchErr != nil {
		return failedStatus(fetchErr)
	}

	count := p.results.Len()
	status := Status{
		Code:      StatusOK,
		Count:     count,
		Total:     total,
		NoResults: count == 0,
	}
	if status.Total < count {
		status.Total = count
	}
	if more {
		status.Code = StatusMoreAvailable
	}
	return status
}

// capBatch는 limit을 적용하고 더 많은 후보가 있는지 판단합니다
func capBatch(batch results.Batch, limit int) ([]poi.PointOfInterest, int, bool) {
	items := batch.Items
	total := batch.Total
	if total < len(items) {
		total = len(items)
	}
	if limit <= 0 {
		return items, total, false
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, total, total > len(items)
}
