package panel

import (
	"go.uber.org/zap"
)

// onSnapshotTick은 새로고침 스케줄러 틱을 소유 루프에서 처리합니다.
//
// fetch 전에 "마지막 프레임에 머물러 있는지"를 기록해 두고, fetch가 끝난 뒤
// 그 상태였고 재생 중이 아니면 새 마지막 프레임으로 이동합니다.
// 사용자가 뒤로 넘겨 본 경우에는 커서를 건드리지 않습니다.
// 선택이 바뀌거나 스케줄러가 멈추면 진행 중인 fetch는 취소되고 완료 처리는 무시됩니다.
func (p *Panel) onSnapshotTick(gen uint64) {
	p.mu.Lock()
	if !p.snapshotTimer.current(gen) || p.camera == nil {
		p.mu.Unlock()
		return
	}
	if p.snapshotTimer.busy {
		p.mu.Unlock()
		p.logger.Debug("Previous snapshot fetch still outstanding, skipping tick")
		return
	}
	cam := p.camera
	fetchCtx := p.snapshotTimer.ctx
	parked := p.parkedOnLastLocked()
	p.snapshotTimer.busy = true
	p.mu.Unlock()

	p.metrics.SchedulerTick()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_, _ = p.fetchFrame(fetchCtx, cam)
		p.loop.post(nil, func() {
			p.finishSnapshotTick(gen, parked)
		})
	}()
}

func (p *Panel) finishSnapshotTick(gen uint64, parked bool) {
	p.guarded(func() {
		if !p.snapshotTimer.current(gen) {
			return
		}
		p.snapshotTimer.busy = false

		if parked && !p.playing {
			p.moveToLastLocked()
		}

		p.logger.Debug("Snapshot tick completed",
			zap.Bool("parked", parked),
			zap.Int("cursor", p.cursor),
		)
	})
}
