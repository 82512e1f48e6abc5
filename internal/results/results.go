package results

import (
	"sync"

	"github.com/yourusername/trafficcam/internal/poi"
	"go.uber.org/zap"
)

// ChangeKind는 컬렉션 변경 종류입니다.
// Reset과 Add 두 가지만 존재하며 부분 삭제/교체/이동은 지원하지 않습니다.
type ChangeKind int

const (
	ChangeReset ChangeKind = iota
	ChangeAdd
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeReset:
		return "reset"
	case ChangeAdd:
		return "add"
	default:
		return "unknown"
	}
}

// Change는 Set 변경 알림입니다
type Change struct {
	kind  ChangeKind
	items []poi.PointOfInterest
}

// ResetChange는 전체 초기화 알림을 만듭니다
func ResetChange() Change {
	return Change{kind: ChangeReset}
}

// AddChange는 항목 일괄 추가 알림을 만듭니다
func AddChange(items []poi.PointOfInterest) Change {
	copied := make([]poi.PointOfInterest, len(items))
	copy(copied, items)
	return Change{kind: ChangeAdd, items: copied}
}

func (c Change) Kind() ChangeKind { return c.kind }

// Items는 Add 알림의 항목을 반환합니다 (Reset이면 nil)
func (c Change) Items() []poi.PointOfInterest { return c.items }

type subscription struct {
	id uint64
	fn func(Change)
}

// Set은 ID로 고유하고 삽입 순서를 유지하는 결과 집합입니다
type Set struct {
	logger *zap.Logger

	items []poi.PointOfInterest
	index map[string]int
	mutex sync.RWMutex

	subs   []subscription
	nextID uint64
	subMu  sync.Mutex
	// notifyMu는 알림 순서를 변경 순서와 일치시킵니다
	notifyMu sync.Mutex
}

// NewSet은 빈 결과 집합을 생성합니다
func NewSet(logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Set{
		logger: logger,
		index:  make(map[string]int),
	}
}

// Subscribe는 변경 알림 구독을 등록하고 해제 함수를 반환합니다
func (s *Set) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Replace는 집합 전체를 교체합니다.
// 항상 Reset을 먼저 알리고, 새 항목이 있으면 Add를 한 번 알립니다.
func (s *Set) Replace(items []poi.PointOfInterest) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mutex.Lock()
	s.items = nil
	s.index = make(map[string]int, len(items))
	added := s.appendUnsafe(items)
	s.mutex.Unlock()

	s.notify(ResetChange())
	if len(added) > 0 {
		s.notify(AddChange(added))
	}
}

// Append는 중복되지 않는 항목만 뒤에 추가합니다
func (s *Set) Append(items []poi.PointOfInterest) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mutex.Lock()
	added := s.appendUnsafe(items)
	s.mutex.Unlock()

	if len(added) > 0 {
		s.notify(AddChange(added))
	}
}

// appendUnsafe는 mutex 없이 항목을 추가합니다 (내부용)
func (s *Set) appendUnsafe(items []poi.PointOfInterest) []poi.PointOfInterest {
	added := make([]poi.PointOfInterest, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if _, exists := s.index[item.ID()]; exists {
			s.logger.Warn("Duplicate id dropped from result set", zap.String("id", item.ID()))
			continue
		}
		s.index[item.ID()] = len(s.items)
		s.items = append(s.items, item)
		added = append(added, item)
	}
	return added
}

func (s *Set) notify(change Change) {
	s.subMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(change)
	}
}

// Get은 ID로 항목을 조회합니다
func (s *Set) Get(id string) (poi.PointOfInterest, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	i, exists := s.index[id]
	if !exists {
		return nil, false
	}
	return s.items[i], true
}

// Items는 삽입 순서대로 항목 복사본을 반환합니다
func (s *Set) Items() []poi.PointOfInterest {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make([]poi.PointOfInterest, len(s.items))
	copy(result, s.items)
	return result
}

// Len은 항목 수를 반환합니다
func (s *Set) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.items)
}

// Batch는 외부 fetch 협력자가 반환하는 결과 묶음입니다
type Batch struct {
	Items []poi.PointOfInterest
	// Total은 영역 안의 전체 후보 수입니다 (모르면 0)
	Total int
}
