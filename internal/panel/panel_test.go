package panel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/trafficcam/internal/geo"
	"github.com/yourusername/trafficcam/internal/metrics"
	"github.com/yourusername/trafficcam/internal/poi"
	"github.com/yourusername/trafficcam/internal/results"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRefreshReplacesMarkersInOrder(t *testing.T) {
	h := newHarness(t)
	h.results.set(results.Batch{Items: items(camera("a", 2), camera("b", 2), camera("c", 2))}, nil)

	refreshed := make(chan struct{}, 1)
	h.panel.OnRefreshed(func() { refreshed <- struct{}{} })

	status := h.panel.Refresh(context.Background(), testBox, "")

	assert.Equal(t, StatusOK, status.Code)
	assert.Equal(t, 3, status.Count)
	assert.False(t, status.NoResults)
	assert.Equal(t, []string{"clear", "add:a", "add:b", "add:c"}, h.registry.take())

	ids := make([]string, 0, 3)
	for _, item := range h.panel.Results().Items() {
		ids = append(ids, item.ID())
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	select {
	case <-refreshed:
	case <-time.After(waitFor):
		t.Fatal("Refreshed was not emitted")
	}
}

func TestRefreshEmptyResult(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2))

	h.results.set(results.Batch{}, nil)
	status := h.panel.Refresh(context.Background(), testBox, "")

	assert.Equal(t, StatusOK, status.Code)
	assert.True(t, status.NoResults)
	assert.Equal(t, 0, h.panel.Results().Len())
	assert.Equal(t, []string{"clear"}, h.registry.take())
	assert.NotEmpty(t, status.Message())
}

func TestRefreshCapsAtMaxResults(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxResults = 5 })

	cams := make([]*poi.Camera, 0, 8)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		cams = append(cams, camera(id, 2))
	}
	h.results.set(results.Batch{Items: items(cams...), Total: 8}, nil)

	status := h.panel.Refresh(context.Background(), testBox, "")

	assert.Equal(t, StatusMoreAvailable, status.Code)
	assert.Equal(t, 5, status.Count)
	assert.Equal(t, 8, status.Total)
	assert.Equal(t, 5, h.panel.Results().Len())
	assert.Contains(t, status.Message(), "5 of 8")
	assert.Equal(t, []int{5}, h.results.limits)
}

func TestRefreshFailureClearsResultSet(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2), camera("b", 2))
	h.selectID("a")

	var changes []SelectionChange
	var mu sync.Mutex
	h.panel.OnItemSelected(func(change SelectionChange) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, change)
	})
	refreshed := 0
	h.panel.OnRefreshed(func() { refreshed++ })

	h.results.set(results.Batch{}, errors.New("upstream 503"))
	status := h.panel.Refresh(context.Background(), testBox, "a")

	assert.Equal(t, StatusFailed, status.Code)
	assert.False(t, status.OK())
	assert.True(t, status.NoResults)
	assert.ErrorIs(t, status.Err, ErrFetchFailed)
	assert.Contains(t, status.Message(), "upstream 503")
	assert.Equal(t, 0, h.panel.Results().Len())
	assert.Equal(t, 1, refreshed)

	snap := h.panel.Snapshot()
	assert.Nil(t, snap.Selected)
	assert.False(t, snap.Polling)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].New)
	assert.Equal(t, "a", changes[0].Old.ID())
}

func TestRefreshAutoSelect(t *testing.T) {
	h := newHarness(t)
	h.results.set(results.Batch{Items: items(camera("a", 2), camera("b", 3))}, nil)

	status := h.panel.Refresh(context.Background(), testBox, "b")
	require.True(t, status.OK())

	snap := h.panel.Snapshot()
	require.NotNil(t, snap.Selected)
	assert.Equal(t, "b", snap.Selected.ID())
	assert.True(t, snap.Polling)
	assert.Equal(t, 3*time.Second, snap.PollInterval)
	assert.True(t, h.registry.Highlighted("b"))

	// 새 결과에 없는 id는 선택되지 않습니다
	status = h.panel.Refresh(context.Background(), testBox, "zzz")
	require.True(t, status.OK())
	assert.Nil(t, h.panel.Snapshot().Selected)
}

func TestRefreshStopsScheduler(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "img-1"))
	h.selectID("a")

	ticker := h.clock.latest(2 * time.Second)
	require.NotNil(t, ticker)

	h.panel.Refresh(context.Background(), testBox, "")

	require.Eventually(t, ticker.isStopped, waitFor, pollEvery)
	assert.False(t, h.panel.Snapshot().Polling)
}

func TestSelectUnknownID(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2))
	h.selectID("a")

	err := h.panel.Select(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	snap := h.panel.Snapshot()
	assert.Nil(t, snap.Selected)
	assert.False(t, snap.Polling)
	assert.False(t, h.registry.Highlighted("a"))
	assert.Equal(t, 1, h.frames.callCount("a"))
}

func TestSelectArmsSchedulerAtCameraRate(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "img-1"))
	h.frames.queue("a", "img-1", "img-2")

	h.selectID("a")

	assert.Equal(t, 1, h.frames.callCount("a"), "select fetches once immediately")
	ticker := h.clock.latest(2 * time.Second)
	require.NotNil(t, ticker)

	snap := h.panel.Snapshot()
	assert.True(t, snap.Polling)
	assert.Equal(t, 2*time.Second, snap.PollInterval)
	assert.Equal(t, 0, snap.Cursor)

	require.True(t, ticker.fire())
	require.Eventually(t, func() bool {
		return h.panel.Snapshot().FrameCount == 2 && h.panel.Snapshot().Cursor == 1
	}, waitFor, pollEvery)
	assert.Equal(t, 2, h.frames.callCount("a"))
}

func TestSelectFloorsRefreshInterval(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MinRefreshInterval = 1500 * time.Millisecond })
	h.load(camera("fast", 0.2))

	h.selectID("fast")

	assert.NotNil(t, h.clock.latest(1500*time.Millisecond))
	assert.Equal(t, 1500*time.Millisecond, h.panel.Snapshot().PollInterval)
}

func TestSelectWithNoFrames(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2))

	h.selectID("a")

	snap := h.panel.Snapshot()
	assert.Equal(t, -1, snap.Cursor)
	assert.Equal(t, 0, snap.FrameCount)
	_, ok := h.panel.CurrentFrame()
	assert.False(t, ok)

	// 첫 프레임이 도착하면 커서가 따라갑니다
	h.frames.queue("a", "img-1")
	h.snapshotTick()
	assert.Equal(t, 0, h.panel.Snapshot().Cursor)

	frame, ok := h.panel.CurrentFrame()
	require.True(t, ok)
	assert.Equal(t, []byte("img-1"), frame.Payload)
}

func TestSchedulerAdvancesWhenParkedOnLast(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0", "f1", "f2"))
	h.frames.queue("a", "f2", "f3")

	h.selectID("a")
	require.Equal(t, 2, h.panel.Snapshot().Cursor)

	h.snapshotTick()

	snap := h.panel.Snapshot()
	assert.Equal(t, 4, snap.FrameCount)
	assert.Equal(t, 3, snap.Cursor)
}

func TestSchedulerLeavesCursorWhenNotParked(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0", "f1", "f2"))
	h.frames.queue("a", "f2", "f3")

	h.selectID("a")
	require.NoError(t, h.panel.SetCursor(0))

	h.snapshotTick()

	snap := h.panel.Snapshot()
	assert.Equal(t, 4, snap.FrameCount)
	assert.Equal(t, 0, snap.Cursor)
}

func TestSchedulerDoesNotAdvanceWhilePlaying(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0", "f1", "f2"))
	h.frames.queue("a", "f2", "f3")
	h.selectID("a")

	playing, err := h.panel.TogglePlayback()
	require.NoError(t, err)
	require.True(t, playing)

	h.frameTick()
	h.frameTick()
	require.Equal(t, 2, h.panel.Snapshot().Cursor)
	require.True(t, h.panel.Snapshot().Playing)

	h.snapshotTick()

	snap := h.panel.Snapshot()
	assert.Equal(t, 4, snap.FrameCount)
	assert.Equal(t, 2, snap.Cursor, "cursor is left alone while the movie plays")
}

func TestSchedulerSkipsTickWhileFetchOutstanding(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0"))
	h.selectID("a")
	require.Equal(t, 1, h.frames.callCount("a"))

	gate := h.frames.block("a")
	gen := h.snapshotGen()
	h.postSnapshotTick(gen)
	require.Eventually(t, func() bool { return h.frames.callCount("a") == 2 }, waitFor, pollEvery)

	h.postSnapshotTick(gen)
	assert.Equal(t, 2, h.frames.callCount("a"))

	close(gate)
	h.waitIdle()

	h.postSnapshotTick(gen)
	require.Eventually(t, func() bool { return h.frames.callCount("a") == 3 }, waitFor, pollEvery)
	h.waitIdle()
}

func TestSwitchingSelectionStopsPreviousScheduler(t *testing.T) {
	h := newHarness(t)
	h.load(camera("x", 2, "x0"), camera("y", 3, "y0"))

	h.selectID("x")
	xTicker := h.clock.latest(2 * time.Second)
	require.NotNil(t, xTicker)
	staleGen := h.snapshotGen()

	h.selectID("y")
	require.Eventually(t, xTicker.isStopped, waitFor, pollEvery)
	assert.False(t, xTicker.fire(), "stopped ticker must have no receiver")

	h.postSnapshotTick(staleGen)
	h.waitIdle()
	assert.Equal(t, 1, h.frames.callCount("x"))

	snap := h.panel.Snapshot()
	assert.Equal(t, "y", snap.Selected.ID())
	assert.Equal(t, 3*time.Second, snap.PollInterval)
}

func TestSelectionChangeDuringTickFetchIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.load(camera("x", 2, "x0"), camera("y", 3, "y0", "y1"))

	h.selectID("x")
	require.Equal(t, 0, h.panel.Snapshot().Cursor)
	h.frames.queue("x", "x1")

	gate := h.frames.hold("x")
	h.postSnapshotTick(h.snapshotGen())
	require.Eventually(t, func() bool { return h.frames.callCount("x") == 2 }, waitFor, pollEvery)

	h.selectID("y")
	require.NoError(t, h.panel.MoveCursor(MoveFirst))

	close(gate)
	require.Eventually(t, func() bool {
		x, _ := h.panel.Results().Get("x")
		return x.(*poi.Camera).FrameCount() == 2
	}, waitFor, pollEvery)

	assert.Never(t, func() bool { return h.panel.Snapshot().Cursor != 0 }, 100*time.Millisecond, pollEvery)

	snap := h.panel.Snapshot()
	assert.Equal(t, "y", snap.Selected.ID())
	assert.Equal(t, 0, snap.Cursor)
	assert.Equal(t, 2, snap.FrameCount)
	assert.True(t, snap.Polling)
	assert.Equal(t, 3*time.Second, snap.PollInterval)
}

func TestSelectionChangeCancelsTickFetch(t *testing.T) {
	h := newHarness(t)
	x := camera("x", 2, "x0")
	h.load(x, camera("y", 3, "y0"))

	h.selectID("x")
	h.frames.queue("x", "x1")

	gate := h.frames.block("x")
	h.postSnapshotTick(h.snapshotGen())
	require.Eventually(t, func() bool { return h.frames.callCount("x") == 2 }, waitFor, pollEvery)

	h.selectID("y")
	require.Eventually(t, func() bool { return h.frames.cancelCount("x") == 1 }, waitFor, pollEvery)
	close(gate)

	assert.Equal(t, 1, x.FrameCount(), "superseded camera must not gain a frame")
	assert.Equal(t, "y", h.panel.Snapshot().Selected.ID())
}

func TestStaleTickAfterStopIsNoop(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0", "f1"))
	h.frames.queue("a", "f1", "f2")
	h.selectID("a")

	gen := h.snapshotGen()
	h.panel.StopRefreshing()

	h.postSnapshotTick(gen)
	h.waitIdle()

	snap := h.panel.Snapshot()
	assert.False(t, snap.Polling)
	assert.Equal(t, 2, snap.FrameCount)
	assert.Equal(t, 1, h.frames.callCount("a"))
}

func TestReselectSameIDRefetches(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0"))

	h.selectID("a")
	first := h.clock.latest(2 * time.Second)
	h.selectID("a")

	assert.Equal(t, 2, h.frames.callCount("a"))
	assert.Equal(t, 2, h.clock.count(2*time.Second))
	require.Eventually(t, first.isStopped, waitFor, pollEvery)
	assert.True(t, h.panel.Snapshot().Polling)
}

func TestSelectionHighlightsMarkers(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2), camera("b", 2))

	h.selectID("a")
	assert.Equal(t, []string{"highlight:a:true"}, h.registry.take())

	h.selectID("b")
	assert.Equal(t, []string{"highlight:a:false", "highlight:b:true"}, h.registry.take())

	require.NoError(t, h.panel.Deselect(context.Background()))
	assert.Equal(t, []string{"highlight:b:false"}, h.registry.take())
	assert.Nil(t, h.panel.Snapshot().Selected)
}

func TestOverlappingSelectsDeliverEventsInOrder(t *testing.T) {
	registry := newStallingRegistry("a")
	h := newHarness(t, func(c *Config) { c.Markers = registry })
	h.load(camera("a", 2), camera("b", 2))

	var (
		mu    sync.Mutex
		order []string
	)
	h.panel.OnItemSelected(func(change SelectionChange) {
		mu.Lock()
		defer mu.Unlock()
		if change.New != nil {
			order = append(order, change.New.ID())
		}
	})

	first := make(chan error, 1)
	go func() { first <- h.panel.Select(context.Background(), "a") }()
	<-registry.entered

	second := make(chan error, 1)
	go func() { second <- h.panel.Select(context.Background(), "b") }()

	assert.Never(t, func() bool { return len(second) > 0 }, 50*time.Millisecond, pollEvery,
		"second select must wait for the first one's events")

	close(registry.release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	assert.Equal(t, "b", h.panel.Snapshot().Selected.ID())
	assert.False(t, registry.Highlighted("a"))
	assert.True(t, registry.Highlighted("b"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestMarkerTapSelects(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2), camera("b", 2))

	require.True(t, h.registry.Tap("b"))

	snap := h.panel.Snapshot()
	require.NotNil(t, snap.Selected)
	assert.Equal(t, "b", snap.Selected.ID())
	assert.True(t, h.registry.Highlighted("b"))
	assert.False(t, h.registry.Tap("missing"))
}

func TestIncludeAppendsInsideLastArea(t *testing.T) {
	h := newHarness(t)

	added, err := h.panel.Include(context.Background(), camera("early", 2))
	require.NoError(t, err)
	assert.False(t, added, "nothing to extend before the first refresh")

	h.load(camera("a", 2))
	h.panel.SetMaxResults(2)

	added, err = h.panel.Include(context.Background(), camera("b", 2))
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"add:b"}, h.registry.take())

	added, err = h.panel.Include(context.Background(), camera("a", 5))
	require.NoError(t, err)
	assert.False(t, added, "duplicate id")

	outside := poi.NewCamera(poi.CameraInfo{ID: "far", Position: geo.LatLong{Latitude: 40, Longitude: -74}})
	h.panel.SetMaxResults(0)
	added, err = h.panel.Include(context.Background(), outside)
	require.NoError(t, err)
	assert.False(t, added, "outside the refreshed area")

	h.panel.SetMaxResults(2)
	added, err = h.panel.Include(context.Background(), camera("c", 2))
	require.NoError(t, err)
	assert.False(t, added, "result set is full")

	ids := make([]string, 0, 2)
	for _, item := range h.panel.Results().Items() {
		ids = append(ids, item.ID())
	}
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Empty(t, h.registry.take())
}

func TestIncludeAfterFailedRefresh(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2))

	h.results.set(results.Batch{}, errors.New("timeout"))
	h.panel.Refresh(context.Background(), testBox, "")

	added, err := h.panel.Include(context.Background(), camera("b", 2))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 0, h.panel.Results().Len())
}

func TestBindMarkersLater(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Markers = nil })
	registry := newRecordingRegistry()
	h.panel.BindMarkers(registry)

	h.results.set(results.Batch{Items: items(camera("a", 2))}, nil)
	h.panel.Refresh(context.Background(), testBox, "")

	assert.Equal(t, []string{"clear", "add:a"}, registry.take())
}

func TestPlaybackRestartsFromFirstAndStopsAtLast(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0", "f1", "f2"))
	h.selectID("a")
	require.Equal(t, 2, h.panel.Snapshot().Cursor)

	playing, err := h.panel.TogglePlayback()
	require.NoError(t, err)
	assert.True(t, playing)
	assert.Equal(t, 0, h.panel.Snapshot().Cursor)
	require.NotNil(t, h.clock.latest(DefaultFrameInterval))

	h.frameTick()
	assert.Equal(t, 1, h.panel.Snapshot().Cursor)
	h.frameTick()
	assert.Equal(t, 2, h.panel.Snapshot().Cursor)
	assert.True(t, h.panel.Snapshot().Playing)

	h.frameTick()
	snap := h.panel.Snapshot()
	assert.False(t, snap.Playing)
	assert.Equal(t, 2, snap.Cursor)
	require.Eventually(t, h.clock.latest(DefaultFrameInterval).isStopped, waitFor, pollEvery)
}

func TestPlaybackResumesFromMiddle(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0", "f1", "f2"))
	h.selectID("a")
	require.NoError(t, h.panel.SetCursor(1))

	_, err := h.panel.TogglePlayback()
	require.NoError(t, err)
	assert.Equal(t, 1, h.panel.Snapshot().Cursor)

	playing, err := h.panel.TogglePlayback()
	require.NoError(t, err)
	assert.False(t, playing)
}

func TestPlaybackDrivenByFrameTicker(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.FrameInterval = 100 * time.Millisecond })
	h.load(camera("a", 2, "f0", "f1"))
	h.selectID("a")

	_, err := h.panel.TogglePlayback()
	require.NoError(t, err)

	ticker := h.clock.latest(100 * time.Millisecond)
	require.NotNil(t, ticker)
	require.True(t, ticker.fire())
	require.Eventually(t, func() bool { return h.panel.Snapshot().Cursor == 1 }, waitFor, pollEvery)
}

func TestPlaybackWithoutFrames(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2))

	_, err := h.panel.TogglePlayback()
	assert.ErrorIs(t, err, ErrNoFrames)

	h.selectID("a")
	playing, err := h.panel.TogglePlayback()
	assert.ErrorIs(t, err, ErrNoFrames)
	assert.False(t, playing)
}

func TestStopRefreshingStopsPlayback(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0", "f1"))
	h.selectID("a")
	_, err := h.panel.TogglePlayback()
	require.NoError(t, err)

	h.panel.StopRefreshing()

	snap := h.panel.Snapshot()
	assert.False(t, snap.Playing)
	assert.False(t, snap.Polling)
	assert.Equal(t, "a", snap.Selected.ID(), "stopping keeps the selection")
}

func TestMoveCursor(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0", "f1", "f2"))

	assert.ErrorIs(t, h.panel.MoveCursor(MoveNext), ErrNoFrames)

	h.selectID("a")

	require.NoError(t, h.panel.MoveCursor(MoveNext))
	assert.Equal(t, 2, h.panel.Snapshot().Cursor, "next clamps at the last frame")

	require.NoError(t, h.panel.MoveCursor(MoveFirst))
	require.NoError(t, h.panel.MoveCursor(MovePrevious))
	assert.Equal(t, 0, h.panel.Snapshot().Cursor)

	require.NoError(t, h.panel.MoveCursor(MoveNext))
	assert.Equal(t, 1, h.panel.Snapshot().Cursor)

	require.NoError(t, h.panel.MoveCursor(MoveLast))
	assert.Equal(t, 2, h.panel.Snapshot().Cursor)

	assert.ErrorIs(t, h.panel.SetCursor(3), ErrCursorOutOfRange)
	assert.ErrorIs(t, h.panel.SetCursor(-1), ErrCursorOutOfRange)
}

func TestParseCursorMove(t *testing.T) {
	move, err := ParseCursorMove("previous")
	require.NoError(t, err)
	assert.Equal(t, MovePrevious, move)

	_, err = ParseCursorMove("sideways")
	assert.Error(t, err)
}

func TestCursorMovedEvents(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0", "f1"))

	var mu sync.Mutex
	var events []CursorChange
	h.panel.OnCursorMoved(func(change CursorChange) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, change)
	})

	h.selectID("a")
	require.NoError(t, h.panel.SetCursor(0))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, CursorChange{CameraID: "a", Position: 1, Count: 2}, events[0])
	assert.Equal(t, CursorChange{CameraID: "a", Position: 0, Count: 2}, events[1])
}

func TestSetMaxResults(t *testing.T) {
	h := newHarness(t)
	h.panel.SetMaxResults(-3)
	assert.Equal(t, 0, h.panel.MaxResults())
	h.panel.SetMaxResults(7)
	assert.Equal(t, 7, h.panel.MaxResults())
}

func TestPanelMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := newHarness(t, func(c *Config) { c.Metrics = m })

	h.load(camera("a", 2, "f0"), camera("b", 2))
	h.frames.queue("a", "f0", "f1")
	h.selectID("a")
	h.snapshotTick()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Refreshes.WithLabelValues("ok")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Markers))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SchedulerTicks))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FrameFetches.WithLabelValues("unchanged")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FrameFetches.WithLabelValues("appended")))
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	h.load(camera("a", 2, "f0", "f1"))
	h.selectID("a")
	_, err := h.panel.TogglePlayback()
	require.NoError(t, err)

	h.panel.Close()
	h.panel.Close()

	assert.ErrorIs(t, h.panel.Select(context.Background(), "a"), ErrClosed)
	_, err = h.panel.TogglePlayback()
	assert.ErrorIs(t, err, ErrClosed)

	status := h.panel.Refresh(context.Background(), testBox, "")
	assert.Equal(t, StatusFailed, status.Code)
}
