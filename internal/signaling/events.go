package signaling

import (
	"github.com/yourusername/trafficcam/internal/panel"
)

// SelectionPayload는 selection 메시지 페이로드입니다 (선택 해제면 ID가 비어 있음)
type SelectionPayload struct {
	ID       string `json:"id,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// RefreshedPayload는 refreshed 메시지 페이로드입니다
type RefreshedPayload struct {
	Count int `json:"count"`
}

// CursorPayload는 cursor 메시지 페이로드입니다
type CursorPayload struct {
	CameraID string `json:"camera_id"`
	Position int    `json:"position"`
	Count    int    `json:"count"`
}

// Attach는 패널을 이 서버에 연결합니다.
// 서버가 마커 레지스트리가 되고, 패널 이벤트는 모든 클라이언트로 전달됩니다.
func (s *Server) Attach(p *panel.Panel) {
	p.BindMarkers(s)

	p.OnItemSelected(func(change panel.SelectionChange) {
		var payload SelectionPayload
		if change.New != nil {
			payload.ID = change.New.ID()
		}
		if change.Old != nil {
			payload.Previous = change.Old.ID()
		}
		s.Publish(TypeSelection, payload)
	})

	p.OnRefreshed(func() {
		s.Publish(TypeRefreshed, RefreshedPayload{Count: p.Results().Len()})
	})

	p.OnCursorMoved(func(change panel.CursorChange) {
		s.Publish(TypeCursor, CursorPayload{
			CameraID: change.CameraID,
			Position: change.Position,
			Count:    change.Count,
		})
	})
}
