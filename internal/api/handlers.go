package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/trafficcam/internal/database"
	"github.com/yourusername/trafficcam/internal/geo"
	"github.com/yourusername/trafficcam/internal/panel"
	"github.com/yourusername/trafficcam/internal/poi"
	"go.uber.org/zap"
)

// RefreshRequest는 POST /api/v1/refresh 본문입니다.
// BBox 대신 Center("lat,long")와 범위를 줄 수도 있습니다.
type RefreshRequest struct {
	BBox       *geo.BoundingBox `json:"bbox"`
	Center     string           `json:"center"`
	LatSpan    float64          `json:"lat_span"`
	LngSpan    float64          `json:"lng_span"`
	SelectID   string           `json:"select_id"`
	MaxResults *int             `json:"max_results"`
}

func (r RefreshRequest) box() (geo.BoundingBox, error) {
	if r.BBox != nil {
		return *r.BBox, r.BBox.Validate()
	}
	if r.Center == "" {
		return geo.BoundingBox{}, errors.New("bbox or center is required")
	}

	center, err := geo.ParseLatLong(r.Center)
	if err != nil {
		return geo.BoundingBox{}, err
	}
	latSpan, lngSpan := r.LatSpan, r.LngSpan
	if latSpan <= 0 {
		latSpan = 0.1
	}
	if lngSpan <= 0 {
		lngSpan = 0.1
	}
	box := geo.BoxAround(center, latSpan, lngSpan)
	return box, box.Validate()
}

// StatusResponse는 Refresh 결과 응답입니다
type StatusResponse struct {
	Status    string `json:"status"`
	Count     int    `json:"count"`
	Total     int    `json:"total"`
	NoResults bool   `json:"no_results"`
	Message   string `json:"message,omitempty"`
}

// CameraResponse는 결과 집합 항목 하나입니다
type CameraResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	RefreshRate float64 `json:"refresh_rate,omitempty"`
	Frames      int     `json:"frames"`
}

// SelectionResponse는 현재 선택/재생 상태입니다
type SelectionResponse struct {
	Selected       *CameraResponse `json:"selected"`
	Cursor         int             `json:"cursor"`
	FrameCount     int             `json:"frame_count"`
	Playing        bool            `json:"playing"`
	Polling        bool            `json:"polling"`
	PollIntervalMS int64           `json:"poll_interval_ms"`
}

type selectRequest struct {
	ID string `json:"id" binding:"required"`
}

type cursorRequest struct {
	Move     string `json:"move"`
	Position *int   `json:"position"`
}

func cameraResponse(item poi.PointOfInterest) CameraResponse {
	resp := CameraResponse{
		ID:        item.ID(),
		Latitude:  item.Position().Latitude,
		Longitude: item.Position().Longitude,
	}
	if cam, ok := item.(*poi.Camera); ok {
		resp.Name = cam.Name()
		resp.RefreshRate = cam.RefreshRate()
		resp.Frames = cam.FrameCount()
	}
	return resp
}

func (s *Server) selectionResponse() SelectionResponse {
	snap := s.panel.Snapshot()
	resp := SelectionResponse{
		Cursor:         snap.Cursor,
		FrameCount:     snap.FrameCount,
		Playing:        snap.Playing,
		Polling:        snap.Polling,
		PollIntervalMS: snap.PollInterval.Milliseconds(),
	}
	if snap.Selected != nil {
		cam := cameraResponse(snap.Selected)
		resp.Selected = &cam
	}
	return resp
}

func errorJSON(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"error": err.Error()})
}

// panelErrorCode는 패널 에러를 HTTP 상태 코드로 변환합니다
func panelErrorCode(err error) int {
	switch {
	case errors.Is(err, panel.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, panel.ErrNoFrames):
		return http.StatusConflict
	case errors.Is(err, panel.ErrCursorOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, panel.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleRefresh는 영역의 카메라를 다시 가져옵니다
func (s *Server) handleRefresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	box, err := req.box()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	if req.MaxResults != nil {
		s.panel.SetMaxResults(*req.MaxResults)
	}

	status := s.panel.Refresh(c.Request.Context(), box, req.SelectID)

	code := http.StatusOK
	if !status.OK() {
		code = http.StatusBadGateway
	}
	c.JSON(code, StatusResponse{
		Status:    status.Code.String(),
		Count:     status.Count,
		Total:     status.Total,
		NoResults: status.NoResults,
		Message:   status.Message(),
	})
}

// handleCameras는 현재 결과 집합을 반환합니다
func (s *Server) handleCameras(c *gin.Context) {
	items := s.panel.Results().Items()
	cameras := make([]CameraResponse, 0, len(items))
	for _, item := range items {
		cameras = append(cameras, cameraResponse(item))
	}

	c.JSON(http.StatusOK, gin.H{
		"cameras":     cameras,
		"max_results": s.panel.MaxResults(),
	})
}

func (s *Server) handleStop(c *gin.Context) {
	s.panel.StopRefreshing()
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) handleGetSelection(c *gin.Context) {
	c.JSON(http.StatusOK, s.selectionResponse())
}

// handleSelect는 카메라를 선택합니다
func (s *Server) handleSelect(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	if err := s.panel.Select(c.Request.Context(), req.ID); err != nil {
		errorJSON(c, panelErrorCode(err), err)
		return
	}
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) handleDeselect(c *gin.Context) {
	if err := s.panel.Deselect(c.Request.Context()); err != nil {
		errorJSON(c, panelErrorCode(err), err)
		return
	}
	c.JSON(http.StatusOK, s.selectionResponse())
}

// handleFrame은 커서가 가리키는 프레임 이미지를 반환합니다
func (s *Server) handleFrame(c *gin.Context) {
	frame, ok := s.panel.CurrentFrame()
	if !ok {
		errorJSON(c, http.StatusNotFound, panel.ErrNoFrames)
		return
	}

	snap := s.panel.Snapshot()
	c.Header("X-Frame-Position", strconv.Itoa(snap.Cursor))
	c.Header("X-Frame-Count", strconv.Itoa(snap.FrameCount))
	c.Header("X-Frame-Timestamp", frame.Timestamp.UTC().Format(time.RFC3339Nano))
	c.Data(http.StatusOK, http.DetectContentType(frame.Payload), frame.Payload)
}

// handleCursor는 커서를 이동합니다 (position 또는 move 중 하나)
func (s *Server) handleCursor(c *gin.Context) {
	var req cursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	var err error
	switch {
	case req.Position != nil:
		err = s.panel.SetCursor(*req.Position)
	case req.Move != "":
		var move panel.CursorMove
		move, err = panel.ParseCursorMove(req.Move)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		err = s.panel.MoveCursor(move)
	default:
		errorJSON(c, http.StatusBadRequest, errors.New("move or position is required"))
		return
	}

	if err != nil {
		errorJSON(c, panelErrorCode(err), err)
		return
	}
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) handleTogglePlayback(c *gin.Context) {
	playing, err := s.panel.TogglePlayback()
	if err != nil {
		errorJSON(c, panelErrorCode(err), err)
		return
	}

	s.logger.Debug("Playback toggled", zap.Bool("playing", playing))
	c.JSON(http.StatusOK, s.selectionResponse())
}

// handleListCatalog는 카탈로그의 카메라 목록을 반환합니다
func (s *Server) handleListCatalog(c *gin.Context) {
	if s.catalog == nil {
		errorJSON(c, http.StatusServiceUnavailable, errors.New("catalog is not configured"))
		return
	}

	cameras, err := s.catalog.List(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	if cameras == nil {
		cameras = []*database.Camera{}
	}

	c.JSON(http.StatusOK, gin.H{
		"cameras": cameras,
		"total":   len(cameras),
	})
}

func (s *Server) handleUpsertCatalog(c *gin.Context) {
	if s.catalog == nil {
		errorJSON(c, http.StatusServiceUnavailable, errors.New("catalog is not configured"))
		return
	}

	var camera database.Camera
	if err := c.ShouldBindJSON(&camera); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	if err := camera.Validate(); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	if err := s.catalog.Upsert(c.Request.Context(), &camera); err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}

	// 현재 영역 안의 새 카메라는 바로 결과 집합에 추가됩니다
	if s.panel != nil {
		included, err := s.panel.Include(c.Request.Context(), camera.ToPOI())
		if err != nil {
			s.logger.Warn("Failed to include catalog camera", zap.String("camera_id", camera.ID), zap.Error(err))
		}
		c.Header("X-Included", strconv.FormatBool(included))
	}
	c.JSON(http.StatusCreated, camera)
}

func (s *Server) handleDeleteCatalog(c *gin.Context) {
	if s.catalog == nil {
		errorJSON(c, http.StatusServiceUnavailable, errors.New("catalog is not configured"))
		return
	}

	id := c.Param("id")
	if err := s.catalog.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrCameraNotFound) {
			errorJSON(c, http.StatusNotFound, err)
			return
		}
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
