package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/trafficcam/internal/geo"
	"github.com/yourusername/trafficcam/internal/poi"
	"github.com/yourusername/trafficcam/internal/results"
	"go.uber.org/zap"
)

// ErrCameraNotFound는 카탈로그에 없는 카메라입니다
var ErrCameraNotFound = errors.New("camera not found")

// Camera는 카탈로그에 저장된 카메라 정보를 나타냅니다
type Camera struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	RefreshRate float64   `json:"refresh_rate"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate는 저장 전에 카메라 정보를 검증합니다
func (c *Camera) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("camera id is required")
	}
	if !(geo.LatLong{Latitude: c.Latitude, Longitude: c.Longitude}).Valid() {
		return fmt.Errorf("camera %s: position %g,%g out of range", c.ID, c.Latitude, c.Longitude)
	}
	if c.RefreshRate < 0 {
		return fmt.Errorf("camera %s: refresh rate must not be negative", c.ID)
	}
	return nil
}

// ToPOI는 프레임이 없는 새 poi.Camera를 만듭니다
func (c *Camera) ToPOI() *poi.Camera {
	return poi.NewCamera(poi.CameraInfo{
		ID:          c.ID,
		Name:        c.Name,
		Position:    geo.LatLong{Latitude: c.Latitude, Longitude: c.Longitude},
		RefreshRate: c.RefreshRate,
		ImageURL:    c.ImageURL,
	})
}

const cameraColumns = `id, name, latitude, longitude, refresh_rate, image_url, created_at, updated_at`

// CameraRepository는 카메라 카탈로그 데이터 액세스 레이어입니다.
// 외부 API 대신 결과 집합 공급자로도 사용할 수 있습니다.
type CameraRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCameraRepository는 새로운 CameraRepository를 생성합니다
func NewCameraRepository(db *DB, logger *zap.Logger) *CameraRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CameraRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert는 카메라를 추가하거나 갱신합니다 (created_at은 유지)
func (r *CameraRepository) Upsert(ctx context.Context, camera *Camera) error {
	if err := camera.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO cameras (` + cameraColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			refresh_rate = excluded.refresh_rate,
			image_url = excluded.image_url,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	camera.UpdatedAt = now
	if camera.CreatedAt.IsZero() {
		camera.CreatedAt = now
	}

	_, err := r.db.Conn().ExecContext(ctx, query,
		camera.ID,
		camera.Name,
		camera.Latitude,
		camera.Longitude,
		camera.RefreshRate,
		camera.ImageURL,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert camera: %w", err)
	}

	r.logger.Info("Camera saved",
		zap.String("camera_id", camera.ID),
		zap.String("name", camera.Name),
	)

	return nil
}

// Get은 ID로 카메라를 조회합니다
func (r *CameraRepository) Get(ctx context.Context, id string) (*Camera, error) {
	query := `SELECT ` + cameraColumns + ` FROM cameras WHERE id = ?`

	camera, err := scanCamera(r.db.Conn().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCameraNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	return camera, nil
}

// List는 모든 카메라를 이름 순으로 조회합니다
func (r *CameraRepository) List(ctx context.Context) ([]*Camera, error) {
	query := `SELECT ` + cameraColumns + ` FROM cameras ORDER BY name, id`

	rows, err := r.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	return scanCameras(rows)
}

// Delete는 카메라를 삭제합니다
func (r *CameraRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn().ExecContext(ctx, `DELETE FROM cameras WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete camera: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrCameraNotFound, id)
	}

	r.logger.Info("Camera deleted", zap.String("camera_id", id))
	return nil
}

// Count는 전체 카메라 수를 반환합니다
func (r *CameraRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM cameras`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cameras: %w", err)
	}
	return count, nil
}

// FetchResultSet은 영역 안의 카메라를 이름 순으로 최대 limit개 반환합니다 (0 = 제한 없음).
// Total에는 영역 안의 전체 카메라 수가 담깁니다.
func (r *CameraRepository) FetchResultSet(ctx context.Context, box geo.BoundingBox, limit int) (results.Batch, error) {
	if err := box.Validate(); err != nil {
		return results.Batch{}, err
	}

	where, args := boxFilter(box)

	var total int
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM cameras WHERE `+where, args...).Scan(&total); err != nil {
		return results.Batch{}, fmt.Errorf("failed to count cameras in box: %w", err)
	}

	sqlLimit := -1
	if limit > 0 {
		sqlLimit = limit
	}
	query := `SELECT ` + cameraColumns + ` FROM cameras WHERE ` + where + ` ORDER BY name, id LIMIT ?`

	rows, err := r.db.Conn().QueryContext(ctx, query, append(args, sqlLimit)...)
	if err != nil {
		return results.Batch{}, fmt.Errorf("failed to query cameras in box: %w", err)
	}
	defer rows.Close()

	cameras, err := scanCameras(rows)
	if err != nil {
		return results.Batch{}, err
	}

	items := make([]poi.PointOfInterest, 0, len(cameras))
	for _, camera := range cameras {
		items = append(items, camera.ToPOI())
	}

	r.logger.Debug("Catalog result set",
		zap.String("box", box.String()),
		zap.Int("count", len(items)),
		zap.Int("total", total),
	)

	return results.Batch{Items: items, Total: total}, nil
}

// boxFilter는 날짜변경선을 고려한 WHERE 절을 만듭니다
func boxFilter(box geo.BoundingBox) (string, []any) {
	if box.West <= box.East {
		return `latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`,
			[]any{box.South, box.North, box.West, box.East}
	}
	return `latitude BETWEEN ? AND ? AND (longitude >= ? OR longitude <= ?)`,
		[]any{box.South, box.North, box.West, box.East}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCamera(row rowScanner) (*Camera, error) {
	camera := &Camera{}
	err := row.Scan(
		&camera.ID,
		&camera.Name,
		&camera.Latitude,
		&camera.Longitude,
		&camera.RefreshRate,
		&camera.ImageURL,
		&camera.CreatedAt,
		&camera.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return camera, nil
}

func scanCameras(rows *sql.Rows) ([]*Camera, error) {
	var cameras []*Camera
	for rows.Next() {
		camera, err := scanCamera(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cameras = append(cameras, camera)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cameras: %w", err)
	}
	return cameras, nil
}
