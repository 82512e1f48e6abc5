package signaling

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yourusername/trafficcam/internal/marker"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// 메시지 타입
const (
	TypeMarkersReset    = "markers.reset"
	TypeMarkerAdd       = "marker.add"
	TypeMarkerHighlight = "marker.highlight"
	TypeSelection       = "selection"
	TypeRefreshed       = "refreshed"
	TypeCursor          = "cursor"
	TypeTap             = "tap"
	TypeError           = "error"
)

// Server는 WebSocket으로 연결된 지도 클라이언트들을 하나의 마커 레지스트리로 묶습니다.
// 새로 연결된 클라이언트는 현재 마커 목록과 강조 상태를 먼저 받습니다.
type Server struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clients map[*Client]bool
	mutex   sync.RWMutex
	wg      sync.WaitGroup

	// 레지스트리 상태 (mutex로 보호)
	markers     []marker.Marker
	highlighted map[string]bool
	selection   json.RawMessage

	onClose func(clientID string)
}

// Client는 WebSocket 클라이언트를 나타냅니다
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	server *Server
	logger *zap.Logger
}

// Message는 클라이언트와 주고받는 메시지입니다
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarkerPayload는 marker.add 페이로드입니다
type MarkerPayload struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HighlightPayload는 marker.highlight 페이로드입니다
type HighlightPayload struct {
	ID string `json:"id"`
	On bool   `json:"on"`
}

// TapPayload는 클라이언트가 보내는 tap 페이로드입니다
type TapPayload struct {
	ID string `json:"id"`
}

// ServerConfig는 시그널링 서버 설정
type ServerConfig struct {
	Logger  *zap.Logger
	OnClose func(clientID string)
}

// NewServer는 새로운 시그널링 서버를 생성합니다
func NewServer(config ServerConfig) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 개발 모드: 모든 origin 허용
			},
		},
		clients:     make(map[*Client]bool),
		highlighted: make(map[string]bool),
		onClose:     config.OnClose,
	}
}

// HandleWebSocket은 WebSocket 연결을 처리합니다
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			zap.Error(err),
		)
		return
	}

	clientID := uuid.New().String()
	client := &Client{
		id:     clientID,
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
		logger: s.logger.With(zap.String("client_id", clientID)),
	}

	s.wg.Add(2)
	s.registerClient(client)

	go client.writePump()
	go client.readPump()

	client.logger.Info("WebSocket client connected",
		zap.String("remote_addr", r.RemoteAddr),
	)
}

// registerClient는 클라이언트를 등록하고 현재 레지스트리 상태를 보냅니다
func (s *Server) registerClient(client *Client) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.clients[client] = true

	client.enqueue(encode(TypeMarkersReset, nil))
	for _, m := range s.markers {
		client.enqueue(encode(TypeMarkerAdd, markerPayload(m)))
	}
	for id := range s.highlighted {
		client.enqueue(encode(TypeMarkerHighlight, HighlightPayload{ID: id, On: true}))
	}
	if s.selection != nil {
		client.enqueue(encode(TypeSelection, s.selection))
	}

	s.logger.Info("Client registered",
		zap.String("client_id", client.id),
		zap.Int("total_clients", len(s.clients)),
	)
}

// unregisterClient는 클라이언트를 등록 해제합니다
func (s *Server) unregisterClient(client *Client) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.clients[client]; exists {
		delete(s.clients, client)
		close(client.send)

		s.logger.Info("Client unregistered",
			zap.String("client_id", client.id),
			zap.Int("total_clients", len(s.clients)),
		)

		if s.onClose != nil {
			s.onClose(client.id)
		}
	}
}

// AddMarker는 marker.Registry 구현입니다
func (s *Server) AddMarker(m marker.Marker) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.markers = append(s.markers, m)
	s.broadcastLocked(encode(TypeMarkerAdd, markerPayload(m)))
}

// ClearMarkers는 marker.Registry 구현입니다
func (s *Server) ClearMarkers() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.markers = nil
	s.highlighted = make(map[string]bool)
	s.broadcastLocked(encode(TypeMarkersReset, nil))
}

// HighlightMarker는 marker.Registry 구현입니다
func (s *Server) HighlightMarker(id string, on bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if on {
		s.highlighted[id] = true
	} else {
		delete(s.highlighted, id)
	}
	s.broadcastLocked(encode(TypeMarkerHighlight, HighlightPayload{ID: id, On: on}))
}

// Publish는 모든 클라이언트에 메시지를 보냅니다
func (s *Server) Publish(msgType string, payload interface{}) {
	data := encode(msgType, payload)
	if data == nil {
		s.logger.Error("Failed to marshal message", zap.String("type", msgType))
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if msgType == TypeSelection {
		var msg Message
		if err := json.Unmarshal(data, &msg); err == nil {
			s.selection = msg.Payload
		}
	}
	s.broadcastLocked(data)
}

func (s *Server) broadcastLocked(data []byte) {
	if data == nil {
		return
	}
	for client := range s.clients {
		client.enqueue(data)
	}
}

// tap은 클라이언트가 누른 마커의 Tap을 호출합니다
func (s *Server) tap(id string) bool {
	s.mutex.RLock()
	var found *marker.Marker
	for i := range s.markers {
		if s.markers[i].ID == id {
			m := s.markers[i]
			found = &m
			break
		}
	}
	s.mutex.RUnlock()

	if found == nil {
		return false
	}
	found.Tap()
	return true
}

// readPump은 WebSocket에서 메시지를 읽습니다
func (c *Client) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		c.conn.Close()
		c.server.wg.Done()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump은 WebSocket으로 메시지를 씁니다
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
		c.server.wg.Done()
	}()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.logger.Error("Failed to write message", zap.Error(err))
			break
		}
	}
}

// handleMessage는 클라이언트 메시지를 처리합니다
func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		return
	}

	c.logger.Debug("Received message",
		zap.String("type", msg.Type),
	)

	switch msg.Type {
	case TypeTap:
		var tap TapPayload
		if err := json.Unmarshal(msg.Payload, &tap); err != nil {
			c.logger.Error("Failed to parse tap payload", zap.Error(err))
			c.SendError("invalid tap payload")
			return
		}
		if !c.server.tap(tap.ID) {
			c.SendError("unknown marker: " + tap.ID)
		}
	default:
		c.logger.Warn("Unknown message type", zap.String("type", msg.Type))
	}
}

// SendError는 에러 메시지를 전송합니다
func (c *Client) SendError(errorMsg string) {
	c.server.mutex.RLock()
	defer c.server.mutex.RUnlock()

	if c.server.clients[c] {
		c.enqueue(encode(TypeError, errorMsg))
	}
}

// enqueue는 서버 mutex를 잡은 상태에서 호출됩니다
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.logger.Error("Send channel full, dropping message")
	}
}

// GetID는 클라이언트 ID를 반환합니다
func (c *Client) GetID() string {
	return c.id
}

func markerPayload(m marker.Marker) MarkerPayload {
	return MarkerPayload{
		ID:        m.ID,
		Label:     m.Label,
		Latitude:  m.Position.Latitude,
		Longitude: m.Position.Longitude,
	}
}

func encode(msgType string, payload interface{}) []byte {
	msg := Message{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil
		}
		msg.Payload = raw
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return data
}

// Markers는 현재 마커 목록의 복사본을 반환합니다
func (s *Server) Markers() []marker.Marker {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	result := make([]marker.Marker, len(s.markers))
	copy(result, s.markers)
	return result
}

// GetClientCount는 연결된 클라이언트 수를 반환합니다
func (s *Server) GetClientCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.clients)
}

// Close는 모든 클라이언트 연결을 종료하고 pump 고루틴을 기다립니다
func (s *Server) Close() {
	s.logger.Info("Closing signaling server")

	s.mutex.RLock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for client := range s.clients {
		conns = append(conns, client.conn)
	}
	s.mutex.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
	s.wg.Wait()
}
