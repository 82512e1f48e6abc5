package marker

import (
	"errors"
	"sync"

	"github.com/yourusername/trafficcam/internal/geo"
	"github.com/yourusername/trafficcam/internal/poi"
	"github.com/yourusername/trafficcam/internal/results"
	"go.uber.org/zap"
)

// ErrRegistryNotBound는 마커 레지스트리 없이 동기화가 시도되었을 때의 구성 오류입니다
var ErrRegistryNotBound = errors.New("marker registry is required but was not bound")

// Marker는 지도 위 하나의 항목 표시입니다
type Marker struct {
	ID       string
	Position geo.LatLong
	Label    string

	tap func()
}

// Tap은 마커 탭을 소유 컨트롤러의 선택 요청으로 전달합니다
func (m Marker) Tap() {
	if m.tap != nil {
		m.tap()
	}
}

// Registry는 마커를 렌더링하는 외부 협력자입니다
type Registry interface {
	AddMarker(m Marker)
	ClearMarkers()
	HighlightMarker(id string, on bool)
}

// labeled는 이름을 가진 항목입니다
type labeled interface {
	Name() string
}

// Synchronizer는 결과 집합의 변경을 마커 레지스트리에 반영합니다.
// 결과 집합 자체는 절대 변경하지 않습니다.
type Synchronizer struct {
	logger   *zap.Logger
	registry Registry
	mutex    sync.RWMutex

	onTap    func(id string)
	onChange func(markers int)
	count    int
}

// SynchronizerConfig는 Synchronizer 설정
type SynchronizerConfig struct {
	Logger   *zap.Logger
	Registry Registry // 나중에 Bind로 지정 가능
	OnTap    func(id string)
	// OnChange는 마커 수가 바뀔 때 호출됩니다 (선택)
	OnChange func(markers int)
}

// NewSynchronizer는 새로운 Synchronizer를 생성합니다
func NewSynchronizer(config SynchronizerConfig) *Synchronizer {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		logger:   logger,
		registry: config.Registry,
		onTap:    config.OnTap,
		onChange: config.OnChange,
	}
}

// Bind는 렌더링 대상 레지스트리를 지정합니다
func (s *Synchronizer) Bind(registry Registry) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.registry = registry
}

func (s *Synchronizer) bound() Registry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.registry
}

// Handle은 결과 집합 변경 하나를 처리합니다.
// 레지스트리가 지정되지 않았으면 panic 합니다 (복구 불가능한 구성 오류).
func (s *Synchronizer) Handle(change results.Change) {
	registry := s.bound()
	if registry == nil {
		panic(ErrRegistryNotBound)
	}

	switch change.Kind() {
	case results.ChangeReset:
		registry.ClearMarkers()
		s.setCount(0)
		s.logger.Debug("Markers cleared")

	case results.ChangeAdd:
		for _, item := range change.Items() {
			registry.AddMarker(s.markerFor(item))
		}
		s.setCount(s.count + len(change.Items()))
		s.logger.Debug("Markers added", zap.Int("count", len(change.Items())))
	}
}

func (s *Synchronizer) markerFor(item poi.PointOfInterest) Marker {
	id := item.ID()
	m := Marker{
		ID:       id,
		Position: item.Position(),
		Label:    id,
	}
	if named, ok := item.(labeled); ok && named.Name() != "" {
		m.Label = named.Name()
	}
	if s.onTap != nil {
		onTap := s.onTap
		m.tap = func() { onTap(id) }
	}
	return m
}

func (s *Synchronizer) setCount(n int) {
	s.count = n
	if s.onChange != nil {
		s.onChange(n)
	}
}

// Highlight는 선택 변경에 따라 새 항목은 강조, 이전 항목은 강조 해제합니다
func (s *Synchronizer) Highlight(newItem, oldItem poi.PointOfInterest) {
	registry := s.bound()
	if registry == nil {
		return
	}
	if oldItem != nil && (newItem == nil || oldItem.ID() != newItem.ID()) {
		registry.HighlightMarker(oldItem.ID(), false)
	}
	if newItem != nil {
		registry.HighlightMarker(newItem.ID(), true)
	}
}
