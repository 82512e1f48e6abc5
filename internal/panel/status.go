package panel

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound는 결과 집합에 없는 ID를 선택했을 때 반환됩니다 (선택은 해제됨)
	ErrNotFound = errors.New("item not found in result set")
	// ErrNoFrames는 선택된 카메라에 프레임이 없을 때 반환됩니다
	ErrNoFrames = errors.New("no frames available for the current selection")
	// ErrCursorOutOfRange는 프레임 범위를 벗어난 커서 위치입니다
	ErrCursorOutOfRange = errors.New("cursor position out of range")
	// ErrClosed는 종료된 패널에 대한 호출입니다
	ErrClosed = errors.New("panel is closed")
	// ErrFetchFailed는 외부 fetch 실패를 감쌉니다
	ErrFetchFailed = errors.New("fetch failed")
)

// StatusCode는 Refresh 결과 종류입니다
type StatusCode int

const (
	StatusOK StatusCode = iota
	// StatusMoreAvailable은 MaxResults보다 많은 후보가 있음을 뜻합니다
	StatusMoreAvailable
	StatusFailed
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusMoreAvailable:
		return "more_available"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status는 Refresh 결과입니다. fetch 오류는 Go 에러가 아닌 Status로 전달됩니다.
type Status struct {
	Code StatusCode
	// Count는 결과 집합에 들어간 항목 수입니다
	Count int
	// Total은 영역 안의 전체 후보 수입니다 (알 수 없으면 Count와 같음)
	Total     int
	NoResults bool
	Err       error
}

func (s Status) OK() bool {
	return s.Code != StatusFailed
}

// Message는 사용자에게 보여줄 수 있는 설명을 반환합니다
func (s Status) Message() string {
	switch s.Code {
	case StatusFailed:
		if s.Err != nil {
			return s.Err.Error()
		}
		return "refresh failed"
	case StatusMoreAvailable:
		return fmt.Sprintf("showing %d of %d results; zoom in to see the rest", s.Count, s.Total)
	default:
		if s.NoResults {
			return "no results in this area"
		}
		return ""
	}
}

func failedStatus(err error) Status {
	return Status{
		Code:      StatusFailed,
		NoResults: true,
		Err:       fmt.Errorf("%w: %w", ErrFetchFailed, err),
	}
}
