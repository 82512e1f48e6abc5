package panel

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/trafficcam/internal/geo"
	"github.com/yourusername/trafficcam/internal/marker"
	"github.com/yourusername/trafficcam/internal/poi"
	"github.com/yourusername/trafficcam/internal/results"
	"go.uber.org/zap/zaptest"
)

const (
	waitFor   = time.Second
	pollEvery = 5 * time.Millisecond
)

var testBox = geo.BoundingBox{North: 47.7, South: 47.5, West: -122.4, East: -122.2}

// fakeClock은 테스트에서 틱을 직접 발생시키는 Clock입니다
type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) Ticker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{d: d, ch: make(chan time.Time), stopped: make(chan struct{})}
	c.tickers = append(c.tickers, t)
	return t
}

// latest는 간격 d로 가장 최근에 만들어진 ticker를 반환합니다
func (c *fakeClock) latest(d time.Duration) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.tickers) - 1; i >= 0; i-- {
		if c.tickers[i].d == d {
			return c.tickers[i]
		}
	}
	return nil
}

func (c *fakeClock) count(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if t.d == d {
			n++
		}
	}
	return n
}

type fakeTicker struct {
	d       time.Duration
	ch      chan time.Time
	once    sync.Once
	stopped chan struct{}
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.once.Do(func() { close(t.stopped) })
}

func (t *fakeTicker) isStopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

// fire는 틱 하나를 전달합니다. 아무도 받지 않으면 false
func (t *fakeTicker) fire() bool {
	select {
	case t.ch <- time.Now():
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

type fakeResults struct {
	mu     sync.Mutex
	batch  results.Batch
	err    error
	limits []int
}

func (f *fakeResults) set(batch results.Batch, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batch = batch
	f.err = err
}

func (f *fakeResults) FetchResultSet(ctx context.Context, box geo.BoundingBox, limit int) (results.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return results.Batch{}, f.err
	}
	return f.batch, nil
}

// fakeFrames는 카메라별 이미지 큐를 차례로 돌려줍니다. 큐의 마지막 이미지는 계속 반복됩니다.
type fakeFrames struct {
	mu       sync.Mutex
	images   map[string][][]byte
	calls    map[string]int
	canceled map[string]int
	gates    map[string]gate
	err      error
}

// gate는 fetch를 붙잡아 둡니다. stubborn이면 취소를 무시하고 닫힐 때까지 기다립니다.
type gate struct {
	ch       chan struct{}
	stubborn bool
}

func newFakeFrames() *fakeFrames {
	return &fakeFrames{
		images:   make(map[string][][]byte),
		calls:    make(map[string]int),
		canceled: make(map[string]int),
		gates:    make(map[string]gate),
	}
}

func (f *fakeFrames) queue(id string, images ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, img := range images {
		f.images[id] = append(f.images[id], []byte(img))
	}
}

// block은 id 카메라의 fetch를 반환된 채널이 닫히거나 취소될 때까지 붙잡습니다
func (f *fakeFrames) block(id string) chan struct{} {
	return f.setGate(id, false)
}

// hold는 block과 같지만 취소를 무시합니다
func (f *fakeFrames) hold(id string) chan struct{} {
	return f.setGate(id, true)
}

func (f *fakeFrames) setGate(id string, stubborn bool) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := gate{ch: make(chan struct{}), stubborn: stubborn}
	f.gates[id] = g
	return g.ch
}

func (f *fakeFrames) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeFrames) cancelCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled[id]
}

func (f *fakeFrames) FetchFrame(ctx context.Context, cam *poi.Camera) (bool, error) {
	f.mu.Lock()
	f.calls[cam.ID()]++
	g, gated := f.gates[cam.ID()]
	err := f.err
	var img []byte
	if q := f.images[cam.ID()]; len(q) > 0 {
		img = q[0]
		if len(q) > 1 {
			f.images[cam.ID()] = q[1:]
		}
	}
	f.mu.Unlock()

	if gated {
		done := ctx.Done()
		if g.stubborn {
			done = nil
		}
		select {
		case <-g.ch:
		case <-done:
			f.mu.Lock()
			f.canceled[cam.ID()]++
			f.mu.Unlock()
			return false, ctx.Err()
		}
	}
	if err != nil {
		return false, err
	}
	if img == nil {
		return false, nil
	}
	return cam.AppendFrame(img, time.Now()), nil
}

// recordingRegistry는 레지스트리 호출 순서를 기록합니다
type recordingRegistry struct {
	*marker.MemoryRegistry
	mu  sync.Mutex
	ops []string
}

func newRecordingRegistry() *recordingRegistry {
	return &recordingRegistry{MemoryRegistry: marker.NewMemoryRegistry()}
}

func (r *recordingRegistry) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingRegistry) AddMarker(m marker.Marker) {
	r.record("add:" + m.ID)
	r.MemoryRegistry.AddMarker(m)
}

func (r *recordingRegistry) ClearMarkers() {
	r.record("clear")
	r.MemoryRegistry.ClearMarkers()
}

func (r *recordingRegistry) HighlightMarker(id string, on bool) {
	r.record(fmt.Sprintf("highlight:%s:%t", id, on))
	r.MemoryRegistry.HighlightMarker(id, on)
}

func (r *recordingRegistry) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := r.ops
	r.ops = nil
	return ops
}

// stallingRegistry는 처음 HighlightMarker(id, true) 호출에서 release가 닫힐 때까지 멈춥니다
type stallingRegistry struct {
	*recordingRegistry
	id      string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStallingRegistry(id string) *stallingRegistry {
	return &stallingRegistry{
		recordingRegistry: newRecordingRegistry(),
		id:                id,
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
}

func (r *stallingRegistry) HighlightMarker(id string, on bool) {
	if id == r.id && on {
		stall := false
		r.once.Do(func() { stall = true })
		if stall {
			close(r.entered)
			<-r.release
		}
	}
	r.recordingRegistry.HighlightMarker(id, on)
}

type harness struct {
	t        *testing.T
	clock    *fakeClock
	results  *fakeResults
	frames   *fakeFrames
	registry *recordingRegistry
	panel    *Panel
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		clock:    &fakeClock{},
		results:  &fakeResults{},
		frames:   newFakeFrames(),
		registry: newRecordingRegistry(),
	}
	config := Config{
		Logger:  zaptest.NewLogger(t),
		Clock:   h.clock,
		Results: h.results,
		Frames:  h.frames,
		Markers: h.registry,
	}
	for _, opt := range opts {
		opt(&config)
	}

	h.panel = New(config)
	t.Cleanup(h.panel.Close)
	return h
}

// camera는 이미지 payloads를 프레임으로 가진 카메라를 만듭니다
func camera(id string, rate float64, payloads ...string) *poi.Camera {
	cam := poi.NewCamera(poi.CameraInfo{
		ID:          id,
		Name:        "Camera " + id,
		Position:    geo.LatLong{Latitude: 47.6, Longitude: -122.3},
		RefreshRate: rate,
	})
	at := time.Now()
	for i, payload := range payloads {
		cam.AppendFrame([]byte(payload), at.Add(time.Duration(i)*time.Second))
	}
	return cam
}

func items(cams ...*poi.Camera) []poi.PointOfInterest {
	out := make([]poi.PointOfInterest, len(cams))
	for i, cam := range cams {
		out[i] = cam
	}
	return out
}

// load는 주어진 카메라로 결과 집합을 채웁니다
func (h *harness) load(cams ...*poi.Camera) {
	h.t.Helper()
	h.results.set(results.Batch{Items: items(cams...)}, nil)
	status := h.panel.Refresh(context.Background(), testBox, "")
	require.True(h.t, status.OK(), status.Message())
	h.registry.take()
}

func (h *harness) snapshotGen() uint64 {
	h.panel.mu.Lock()
	defer h.panel.mu.Unlock()
	return h.panel.snapshotTimer.gen
}

func (h *harness) frameGen() uint64 {
	h.panel.mu.Lock()
	defer h.panel.mu.Unlock()
	return h.panel.frameTimer.gen
}

// snapshotTick은 현재 스케줄러 세대의 틱 하나를 처리하고 fetch 완료까지 기다립니다
func (h *harness) snapshotTick() {
	h.t.Helper()
	h.postSnapshotTick(h.snapshotGen())
	h.waitIdle()
}

func (h *harness) postSnapshotTick(gen uint64) {
	h.t.Helper()
	require.NoError(h.t, h.panel.loop.call(func() { h.panel.onSnapshotTick(gen) }))
}

func (h *harness) frameTick() {
	h.t.Helper()
	gen := h.frameGen()
	require.NoError(h.t, h.panel.loop.call(func() { h.panel.onFrameTick(gen) }))
}

func (h *harness) waitIdle() {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		h.panel.mu.Lock()
		defer h.panel.mu.Unlock()
		return !h.panel.snapshotTimer.busy
	}, waitFor, pollEvery)
}

func (h *harness) selectID(id string) {
	h.t.Helper()
	require.NoError(h.t, h.panel.Select(context.Background(), id))
}
