package panel

import "sync"

// loop는 패널 하나의 소유 컨텍스트입니다.
// 타이머 틱과 fetch 완료 처리는 모두 이 큐를 통해 직렬로 실행됩니다.
type loop struct {
	tasks   chan func()
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newLoop(queueSize int) *loop {
	l := &loop{
		tasks:   make(chan func(), queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	defer close(l.stopped)
	for {
		select {
		case <-l.done:
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// post는 작업을 큐에 넣습니다. cancel이 닫히거나 루프가 종료되면 false를 반환합니다.
func (l *loop) post(cancel <-chan struct{}, fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-cancel:
		return false
	case <-l.done:
		return false
	}
}

// call은 작업을 큐에 넣고 실행이 끝날 때까지 기다립니다.
// 루프 고루틴 안에서 호출하면 교착 상태가 됩니다.
func (l *loop) call(fn func()) error {
	finished := make(chan struct{})
	if !l.post(nil, func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-l.stopped:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

func (l *loop) close() {
	l.once.Do(func() {
		close(l.done)
	})
	<-l.stopped
}
