package poi

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/yourusername/trafficcam/internal/geo"
)

// PointOfInterest는 지도에 표시할 수 있는 항목입니다
type PointOfInterest interface {
	// ID는 새로고침 간에도 유지되는 고유 키입니다
	ID() string
	Position() geo.LatLong
}

// Frame은 타임랩스의 한 장면입니다 (추가 후 불변)
type Frame struct {
	Payload   []byte
	Timestamp time.Time
}

// CameraInfo는 카메라 생성에 필요한 정보입니다
type CameraInfo struct {
	ID          string
	Name        string
	Position    geo.LatLong
	RefreshRate float64 // 초 단위
	ImageURL    string
}

// Camera는 타임랩스 프레임을 누적하는 교통 카메라입니다
type Camera struct {
	info CameraInfo

	// 프레임 (fetch 경로에서만 추가)
	frames     []Frame
	lastImage  []byte
	lastDigest uint64
	mu         sync.RWMutex
}

// NewCamera는 프레임이 없는 새 카메라를 생성합니다
func NewCamera(info CameraInfo) *Camera {
	return &Camera{info: info}
}

func (c *Camera) ID() string {
	return c.info.ID
}

func (c *Camera) Position() geo.LatLong {
	return c.info.Position
}

func (c *Camera) Name() string {
	return c.info.Name
}

func (c *Camera) ImageURL() string {
	return c.info.ImageURL
}

func (c *Camera) RefreshRate() float64 {
	return c.info.RefreshRate
}

func (c *Camera) Info() CameraInfo {
	return c.info
}

// RefreshInterval은 RefreshRate를 밀리초 단위 간격으로 변환합니다
func (c *Camera) RefreshInterval() time.Duration {
	return time.Duration(c.info.RefreshRate*1000) * time.Millisecond
}

// AppendFrame은 이미지가 직전 이미지와 다를 때만 프레임을 추가합니다.
// 추가되었으면 true를 반환합니다.
func (c *Camera) AppendFrame(payload []byte, at time.Time) bool {
	if len(payload) == 0 {
		return false
	}
	digest := xxhash.Sum64(payload)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastImage != nil && digest == c.lastDigest {
		return false
	}

	data := make([]byte, len(payload))
	copy(data, payload)

	c.frames = append(c.frames, Frame{Payload: data, Timestamp: at})
	c.lastImage = data
	c.lastDigest = digest
	return true
}

// FrameCount는 누적된 프레임 수를 반환합니다
func (c *Camera) FrameCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frames)
}

// Frame은 i번째 프레임을 반환합니다
func (c *Camera) Frame(i int) (Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.frames) {
		return Frame{}, false
	}
	return c.frames[i], true
}

// Frames는 프레임 목록의 복사본을 반환합니다
func (c *Camera) Frames() []Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Frame, len(c.frames))
	copy(result, c.frames)
	return result
}

// LastImage는 마지막으로 가져온 이미지 바이트를 반환합니다
func (c *Camera) LastImage() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastImage
}
