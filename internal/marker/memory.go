package marker

import "sync"

// MemoryRegistry는 메모리에 마커를 보관하는 Registry 구현입니다
type MemoryRegistry struct {
	markers     []Marker
	highlighted map[string]bool
	mutex       sync.RWMutex
}

// NewMemoryRegistry는 빈 MemoryRegistry를 생성합니다
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{highlighted: make(map[string]bool)}
}

func (r *MemoryRegistry) AddMarker(m Marker) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.markers = append(r.markers, m)
}

func (r *MemoryRegistry) ClearMarkers() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.markers = nil
	r.highlighted = make(map[string]bool)
}

func (r *MemoryRegistry) HighlightMarker(id string, on bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if on {
		r.highlighted[id] = true
	} else {
		delete(r.highlighted, id)
	}
}

// Markers는 추가된 순서대로 마커 복사본을 반환합니다
func (r *MemoryRegistry) Markers() []Marker {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	result := make([]Marker, len(r.markers))
	copy(result, r.markers)
	return result
}

// Highlighted는 마커가 강조 상태인지 확인합니다
func (r *MemoryRegistry) Highlighted(id string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.highlighted[id]
}

// Tap은 ID에 해당하는 마커를 탭합니다. 마커가 없으면 false
func (r *MemoryRegistry) Tap(id string) bool {
	r.mutex.RLock()
	var found *Marker
	for i := range r.markers {
		if r.markers[i].ID == id {
			m := r.markers[i]
			found = &m
			break
		}
	}
	r.mutex.RUnlock()

	if found == nil {
		return false
	}
	found.Tap()
	return true
}
