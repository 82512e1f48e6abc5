package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/yourusername/trafficcam/internal/geo"
	"github.com/yourusername/trafficcam/internal/metrics"
	"github.com/yourusername/trafficcam/internal/poi"
	"github.com/yourusername/trafficcam/internal/results"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrUnavailable는 서킷 브레이커가 열려 요청을 보내지 않았을 때 반환됩니다
var ErrUnavailable = errors.New("traffic camera API temporarily unavailable")

// maxImageSize는 카메라 이미지 하나의 최대 크기입니다
const maxImageSize = 8 << 20

// CameraInfo represents one camera entry from the API
type CameraInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	RefreshRate float64 `json:"refreshRate"`
	ImageURL    string  `json:"imageUrl"`
}

// camerasResponse는 목록 응답의 객체 형태입니다
type camerasResponse struct {
	Total   int          `json:"total"`
	Cameras []CameraInfo `json:"cameras"`
}

// BreakerConfig는 서킷 브레이커 설정
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// Config는 APIClient 설정
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 = 제한 없음
	Breaker           BreakerConfig
	HTTPClient        *http.Client
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

// APIClient handles communication with the traffic camera API.
// It serves both the result set fetch and the per-camera frame fetch.
type APIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	images     singleflight.Group
}

// NewAPIClient creates a new API client
func NewAPIClient(config Config) *APIClient {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := 1
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
		if config.RequestsPerSecond > 1 {
			burst = int(config.RequestsPerSecond)
		}
	}

	c := &APIClient{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(limit, burst),
	}
	c.breaker = newBreaker("traffic-api", config.Breaker, logger, config.Metrics)

	return c
}

func newBreaker(name string, config BreakerConfig, logger *zap.Logger, m *metrics.Metrics) *gobreaker.CircuitBreaker[[]byte] {
	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	m.SetBreakerState(name, float64(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			m.SetBreakerState(name, float64(to))
		},
	})
}

// FetchResultSet retrieves the cameras inside box, at most limit of them (0 = no limit).
// Total carries the number of cameras the API reports for the box when it provides one.
// One camera more than limit is requested so overflow is visible with a bare-array response too.
func (c *APIClient) FetchResultSet(ctx context.Context, box geo.BoundingBox, limit int) (results.Batch, error) {
	if err := box.Validate(); err != nil {
		return results.Batch{}, err
	}

	query := url.Values{}
	query.Set("bbox", box.String())
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit+1))
	}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	body, err := c.get(ctx, c.baseURL+"/cameras?"+query.Encode())
	if err != nil {
		return results.Batch{}, fmt.Errorf("get cameras failed: %w", err)
	}

	infos, total, err := decodeCameras(body)
	if err != nil {
		return results.Batch{}, err
	}

	items := make([]poi.PointOfInterest, 0, len(infos))
	for _, info := range infos {
		position := geo.LatLong{Latitude: info.Latitude, Longitude: info.Longitude}
		if info.ID == "" || !position.Valid() {
			c.logger.Warn("Skipping malformed camera entry",
				zap.String("camera_id", info.ID),
				zap.String("position", position.String()),
			)
			continue
		}
		items = append(items, poi.NewCamera(poi.CameraInfo{
			ID:          info.ID,
			Name:        info.Name,
			Position:    position,
			RefreshRate: info.RefreshRate,
			ImageURL:    info.ImageURL,
		}))
	}
	if total < len(items) {
		total = len(items)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	c.logger.Debug("Fetched cameras",
		zap.String("box", box.String()),
		zap.Int("count", len(items)),
		zap.Int("total", total),
	)

	return results.Batch{Items: items, Total: total}, nil
}

// decodeCameras accepts either a bare array or {"total":n,"cameras":[...]}
func decodeCameras(body []byte) ([]CameraInfo, int, error) {
	// Try to parse as array first
	var cameras []CameraInfo
	if err := json.Unmarshal(body, &cameras); err == nil {
		return cameras, len(cameras), nil
	}

	var response camerasResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, 0, fmt.Errorf("failed to decode response as array or object: %w", err)
	}
	return response.Cameras, response.Total, nil
}

// FetchFrame downloads the current image of cam and appends it as a frame when it changed.
// Concurrent fetches for the same camera share one request.
func (c *APIClient) FetchFrame(ctx context.Context, cam *poi.Camera) (bool, error) {
	v, err, _ := c.images.Do(cam.ID(), func() (interface{}, error) {
		body, err := c.get(ctx, c.imageURL(cam))
		if err != nil {
			return false, err
		}
		return cam.AppendFrame(body, time.Now()), nil
	})
	if err != nil {
		return false, fmt.Errorf("get image for camera %s failed: %w", cam.ID(), err)
	}
	return v.(bool), nil
}

func (c *APIClient) imageURL(cam *poi.Camera) string {
	if cam.ImageURL() != "" {
		return cam.ImageURL()
	}

	u := fmt.Sprintf("%s/cameras/%s/image", c.baseURL, url.PathEscape(cam.ID()))
	if c.apiKey != "" {
		u += "?key=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// get waits for the rate limiter and performs a GET through the circuit breaker
func (c *APIClient) get(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, u)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return body, err
}

func (c *APIClient) do(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
