package panel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/trafficcam/internal/geo"
	"github.com/yourusername/trafficcam/internal/marker"
	"github.com/yourusername/trafficcam/internal/metrics"
	"github.com/yourusername/trafficcam/internal/poi"
	"github.com/yourusername/trafficcam/internal/results"
	"go.uber.org/zap"
)

const (
	// DefaultFrameInterval은 재생 프레임 간격입니다
	DefaultFrameInterval      = 750 * time.Millisecond
	DefaultMinRefreshInterval = time.Second
	DefaultFetchTimeout       = 15 * time.Second
)

// ResultFetcher는 영역 안의 항목을 가져오는 외부 협력자입니다
type ResultFetcher interface {
	FetchResultSet(ctx context.Context, box geo.BoundingBox, limit int) (results.Batch, error)
}

// FrameFetcher는 카메라의 다음 이미지를 가져와 프레임으로 추가하는 외부 협력자입니다.
// 이미지가 바뀌지 않았으면 프레임을 추가하지 않아야 합니다.
type FrameFetcher interface {
	FetchFrame(ctx context.Context, cam *poi.Camera) (appended bool, err error)
}

// Config는 Panel 설정
type Config struct {
	Logger  *zap.Logger
	Clock   Clock
	Results ResultFetcher
	Frames  FrameFetcher
	// Markers는 나중에 BindMarkers로 지정할 수도 있습니다
	Markers marker.Registry
	Metrics *metrics.Metrics

	MaxResults         int // 0 = 제한 없음
	FrameInterval      time.Duration
	MinRefreshInterval time.Duration
	FetchTimeout       time.Duration
}

// SelectionChange는 선택 변경 이벤트입니다 (New, Old 모두 nil 가능)
type SelectionChange struct {
	New poi.PointOfInterest
	Old poi.PointOfInterest
}

// CursorChange는 재생 커서 이동 이벤트입니다
type CursorChange struct {
	CameraID string
	Position int
	Count    int
}

// Snapshot은 패널 상태의 읽기 전용 사본입니다
type Snapshot struct {
	Selected     poi.PointOfInterest
	Cursor       int // 프레임이 없으면 -1
	FrameCount   int
	Playing      bool
	Polling      bool
	PollInterval time.Duration
}

// timer는 소유 루프에 틱을 전달하는 논리 타이머입니다
type timer struct {
	gen      uint64
	active   bool
	busy     bool
	interval time.Duration
	stop     chan struct{}
	// ctx는 이 arming 동안의 fetch에 쓰이며 disarm 시 취소됩니다
	ctx      context.Context
	cancel   context.CancelFunc
}

func (t *timer) current(gen uint64) bool {
	return t.active && t.gen == gen
}

// Panel은 선택 기반 새로고침/재생 컨트롤러입니다
type Panel struct {
	logger        *zap.Logger
	clock         Clock
	results       *results.Set
	resultFetcher ResultFetcher
	frameFetcher  FrameFetcher
	markers       *marker.Synchronizer
	metrics       *metrics.Metrics

	frameInterval time.Duration
	minRefresh    time.Duration
	fetchTimeout  time.Duration
	maxResults    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	loop   *loop
	wg     sync.WaitGroup
	once   sync.Once

	// 선택/새로고침 직렬화 (fetch 동안에도 유지)
	selectSem  chan struct{}
	refreshSem chan struct{}

	// 커서/컬렉션 가드: 선택, 커서, 타이머 상태를 보호합니다
	mu            sync.Mutex
	selected      poi.PointOfInterest
	camera        *poi.Camera
	selGen        uint64
	cursor        int
	playing       bool
	snapshotTimer timer
	frameTimer    timer
	pending       []CursorChange
	// lastBox는 마지막으로 성공한 Refresh의 영역입니다
	lastBox       geo.BoundingBox
	hasBox        bool

	listenerMu         sync.RWMutex
	selectedListeners  []func(SelectionChange)
	refreshedListeners []func()
	cursorListeners    []func(CursorChange)
}

// New는 새로운 Panel을 생성하고 소유 루프를 시작합니다
func New(config Config) *Panel {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := config.Clock
	if clock == nil {
		clock = RealClock()
	}
	frameInterval := config.FrameInterval
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	minRefresh := config.MinRefreshInterval
	if minRefresh <= 0 {
		minRefresh = DefaultMinRefreshInterval
	}
	fetchTimeout := config.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Panel{
		logger:        logger,
		clock:         clock,
		results:       results.NewSet(logger.Named("results")),
		resultFetcher: config.Results,
		frameFetcher:  config.Frames,
		metrics:       config.Metrics,
		frameInterval: frameInterval,
		minRefresh:    minRefresh,
		fetchTimeout:  fetchTimeout,
		ctx:           ctx,
		cancel:        cancel,
		loop:          newLoop(64),
		selectSem:     make(chan struct{}, 1),
		refreshSem:    make(chan struct{}, 1),
		cursor:        -1,
	}
	p.maxResults.Store(int64(config.MaxResults))

	p.markers = marker.NewSynchronizer(marker.SynchronizerConfig{
		Logger:   logger.Named("markers"),
		Registry: config.Markers,
		OnTap: func(id string) {
			if err := p.Select(p.ctx, id); err != nil {
				p.logger.Warn("Marker tap selection failed", zap.String("id", id), zap.Error(err))
			}
		},
		OnChange: p.metrics.SetMarkers,
	})
	p.results.Subscribe(p.markers.Handle)
	p.OnItemSelected(func(change SelectionChange) {
		p.markers.Highlight(change.New, change.Old)
	})

	return p
}

// BindMarkers는 마커 레지스트리를 지정합니다
func (p *Panel) BindMarkers(registry marker.Registry) {
	p.markers.Bind(registry)
}

// Results는 결과 집합을 반환합니다 (읽기 전용으로 사용)
func (p *Panel) Results() *results.Set {
	return p.results
}

func (p *Panel) MaxResults() int {
	return int(p.maxResults.Load())
}

// SetMaxResults는 다음 Refresh부터 적용할 최대 결과 수를 설정합니다 (0 = 제한 없음)
func (p *Panel) SetMaxResults(n int) {
	if n < 0 {
		n = 0
	}
	p.maxResults.Store(int64(n))
}

// OnItemSelected는 선택 변경 리스너를 등록합니다.
// 리스너는 선택 직렬화 안에서 호출되므로 Select, Deselect, Refresh를 호출하면 안 됩니다.
func (p *Panel) OnItemSelected(fn func(SelectionChange)) {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()
	p.selectedListeners = append(p.selectedListeners, fn)
}

// OnRefreshed는 Refresh 완료 리스너를 등록합니다
func (p *Panel) OnRefreshed(fn func()) {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()
	p.refreshedListeners = append(p.refreshedListeners, fn)
}

// OnCursorMoved는 커서 이동 리스너를 등록합니다.
// 소유 루프에서 호출되므로 리스너는 Panel의 블로킹 메서드를 호출하면 안 됩니다.
func (p *Panel) OnCursorMoved(fn func(CursorChange)) {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()
	p.cursorListeners = append(p.cursorListeners, fn)
}

func (p *Panel) emitSelected(change SelectionChange) {
	p.listenerMu.RLock()
	listeners := append([]func(SelectionChange){}, p.selectedListeners...)
	p.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}

func (p *Panel) emitRefreshed() {
	p.listenerMu.RLock()
	listeners := append([]func(){}, p.refreshedListeners...)
	p.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

func (p *Panel) emitCursor(changes []CursorChange) {
	if len(changes) == 0 {
		return
	}
	p.listenerMu.RLock()
	listeners := append([]func(CursorChange){}, p.cursorListeners...)
	p.listenerMu.RUnlock()

	for _, change := range changes {
		for _, fn := range listeners {
			fn(change)
		}
	}
}

// guarded는 가드를 잡고 fn을 실행한 뒤, 가드 해제 후 커서 이벤트를 전달합니다
func (p *Panel) guarded(fn func()) {
	p.mu.Lock()
	fn()
	changes := p.pending
	p.pending = nil
	p.mu.Unlock()

	p.emitCursor(changes)
}

// Snapshot은 현재 상태를 반환합니다
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		Selected:     p.selected,
		Cursor:       p.cursor,
		Playing:      p.playing,
		Polling:      p.snapshotTimer.active,
		PollInterval: p.snapshotTimer.interval,
	}
	if p.camera != nil {
		s.FrameCount = p.camera.FrameCount()
	}
	if !s.Polling {
		s.PollInterval = 0
	}
	return s
}

// CurrentFrame은 커서가 가리키는 프레임을 반환합니다
func (p *Panel) CurrentFrame() (poi.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.camera == nil {
		return poi.Frame{}, false
	}
	return p.camera.Frame(p.cursor)
}

// StopRefreshing은 스케줄러와 재생을 모두 중지합니다
func (p *Panel) StopRefreshing() {
	err := p.loop.call(func() {
		p.guarded(p.stopRefreshingLocked)
	})
	if err != nil {
		p.logger.Debug("StopRefreshing on closed panel")
	}
}

func (p *Panel) stopRefreshingLocked() {
	p.stopMovieLocked()
	p.disarmLocked(&p.snapshotTimer)
}

// armLocked는 타이머를 (재)시작합니다. 이전 틱은 세대 번호로 무효화됩니다.
func (p *Panel) armLocked(t *timer, d time.Duration, fire func(gen uint64)) {
	p.disarmLocked(t)

	t.gen++
	gen := t.gen
	t.active = true
	t.interval = d
	stop := make(chan struct{})
	t.stop = stop
	t.ctx, t.cancel = context.WithCancel(p.ctx)

	ticker := p.clock.Ticker(d)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				if !p.loop.post(stop, func() { fire(gen) }) {
					return
				}
			}
		}
	}()
}

// disarmLocked는 타이머를 즉시 중지합니다. 반환 이후 이 타이머의 틱은 상태를 바꾸지 않습니다.
func (p *Panel) disarmLocked(t *timer) {
	if t.active {
		close(t.stop)
		t.active = false
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.busy = false
	t.gen++
}

func (p *Panel) setCursorLocked(i int) {
	if p.cursor == i {
		return
	}
	p.cursor = i

	change := CursorChange{Position: i}
	if p.camera != nil {
		change.CameraID = p.camera.ID()
		change.Count = p.camera.FrameCount()
	}
	p.pending = append(p.pending, change)
}

func (p *Panel) moveToLastLocked() {
	if p.camera == nil {
		return
	}
	p.setCursorLocked(p.camera.FrameCount() - 1)
}

// parkedOnLastLocked는 커서가 마지막 프레임에 있는지 확인합니다 (프레임이 없으면 true)
func (p *Panel) parkedOnLastLocked() bool {
	if p.camera == nil {
		return false
	}
	return p.cursor == p.camera.FrameCount()-1
}

func (p *Panel) fetchFrame(ctx context.Context, cam *poi.Camera) (bool, error) {
	if p.frameFetcher == nil {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	appended, err := p.frameFetcher.FetchFrame(ctx, cam)
	p.metrics.ObserveFrameFetch(appended, err)
	if err != nil {
		p.logger.Warn("Frame fetch failed",
			zap.String("camera_id", cam.ID()),
			zap.Error(err),
		)
		return false, err
	}

	if appended {
		p.logger.Debug("Frame appended",
			zap.String("camera_id", cam.ID()),
			zap.Int("frames", cam.FrameCount()),
		)
	}
	return appended, nil
}

// Close는 모든 타이머를 중지하고 소유 루프를 종료합니다
func (p *Panel) Close() {
	p.once.Do(func() {
		p.logger.Info("Closing panel")
		_ = p.loop.call(func() {
			p.guarded(p.stopRefreshingLocked)
		})
		p.cancel()
		p.loop.close()
		p.wg.Wait()
	})
}

func acquire(ctx context.Context, sem chan struct{}) error {
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func release(sem chan struct{}) {
	<-sem
}
