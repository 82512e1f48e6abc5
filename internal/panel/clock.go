package panel

import "time"

// Clock은 타이머 생성을 추상화합니다 (테스트에서 교체)
type Clock interface {
	Ticker(d time.Duration) Ticker
}

// Ticker는 주기 타이머입니다
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// RealClock은 time 패키지 기반 Clock을 반환합니다
func RealClock() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Ticker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) Chan() <-chan time.Time {
	return r.t.C
}

func (r *realTicker) Stop() {
	r.t.Stop()
}
