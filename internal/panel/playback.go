package panel

import (
	"fmt"

	"go.uber.org/zap"
)

// CursorMove는 수동 커서 이동 방향입니다
type CursorMove int

const (
	MoveFirst CursorMove = iota
	MoveLast
	MoveNext
	MovePrevious
)

// ParseCursorMove는 "first", "last", "next", "previous"를 파싱합니다
func ParseCursorMove(s string) (CursorMove, error) {
	switch s {
	case "first":
		return MoveFirst, nil
	case "last":
		return MoveLast, nil
	case "next":
		return MoveNext, nil
	case "previous", "prev":
		return MovePrevious, nil
	default:
		return 0, fmt.Errorf("unknown cursor move %q", s)
	}
}

// TogglePlayback은 재생 상태를 뒤집고 새 상태를 반환합니다.
// 프레임이 없으면 ErrNoFrames를 반환하고 정지 상태를 유지합니다.
func (p *Panel) TogglePlayback() (bool, error) {
	var (
		playing bool
		err     error
	)

	callErr := p.loop.call(func() {
		p.guarded(func() {
			if p.playing {
				p.stopMovieLocked()
			} else {
				err = p.startMovieLocked()
			}
			playing = p.playing
		})
	})
	if callErr != nil {
		return false, callErr
	}
	return playing, err
}

func (p *Panel) startMovieLocked() error {
	if p.camera == nil || p.camera.FrameCount() == 0 {
		return ErrNoFrames
	}

	last := p.camera.FrameCount() - 1
	if p.cursor >= last || p.cursor < 0 {
		p.setCursorLocked(0)
	}

	p.playing = true
	p.armLocked(&p.frameTimer, p.frameInterval, p.onFrameTick)

	p.logger.Debug("Playback started",
		zap.String("camera_id", p.camera.ID()),
		zap.Int("frames", last+1),
	)
	return nil
}

func (p *Panel) stopMovieLocked() {
	if p.playing {
		p.logger.Debug("Playback stopped", zap.Int("cursor", p.cursor))
	}
	p.playing = false
	p.disarmLocked(&p.frameTimer)
}

// onFrameTick은 재생 틱을 처리합니다. 마지막 프레임에 도달하면 자동 정지합니다.
func (p *Panel) onFrameTick(gen uint64) {
	p.guarded(func() {
		if !p.frameTimer.current(gen) || p.camera == nil {
			return
		}
		p.metrics.PlaybackTick()

		if p.cursor >= p.camera.FrameCount()-1 {
			p.stopMovieLocked()
			return
		}
		p.setCursorLocked(p.cursor + 1)
	})
}

// MoveCursor는 커서를 수동으로 이동합니다. 범위 끝에서는 제자리에 머뭅니다.
func (p *Panel) MoveCursor(move CursorMove) error {
	var err error
	callErr := p.loop.call(func() {
		p.guarded(func() {
			if p.camera == nil || p.camera.FrameCount() == 0 {
				err = ErrNoFrames
				return
			}
			last := p.camera.FrameCount() - 1

			target := p.cursor
			switch move {
			case MoveFirst:
				target = 0
			case MoveLast:
				target = last
			case MoveNext:
				target++
			case MovePrevious:
				target--
			}
			p.setCursorLocked(clamp(target, 0, last))
		})
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// SetCursor는 커서를 지정한 프레임으로 이동합니다
func (p *Panel) SetCursor(position int) error {
	var err error
	callErr := p.loop.call(func() {
		p.guarded(func() {
			if p.camera == nil || p.camera.FrameCount() == 0 {
				err = ErrNoFrames
				return
			}
			if position < 0 || position >= p.camera.FrameCount() {
				err = fmt.Errorf("%w: %d of %d", ErrCursorOutOfRange, position, p.camera.FrameCount())
				return
			}
			p.setCursorLocked(position)
		})
	})
	if callErr != nil {
		return callErr
	}
	return err
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
