package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// LatLong은 위도/경도 좌표입니다
type LatLong struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Valid는 좌표가 유효 범위 안에 있는지 확인합니다
func (ll LatLong) Valid() bool {
	return ll.Latitude >= -90 && ll.Latitude <= 90 &&
		ll.Longitude >= -180 && ll.Longitude <= 180
}

func (ll LatLong) String() string {
	return fmt.Sprintf("%g,%g", ll.Latitude, ll.Longitude)
}

// ParseLatLong은 "lat,long" 형식 문자열을 파싱합니다
func ParseLatLong(s string) (LatLong, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return LatLong{}, fmt.Errorf("invalid lat,long %q", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return LatLong{}, fmt.Errorf("invalid latitude %q: %w", parts[0], err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return LatLong{}, fmt.Errorf("invalid longitude %q: %w", parts[1], err)
	}

	ll := LatLong{Latitude: lat, Longitude: lng}
	if !ll.Valid() {
		return LatLong{}, fmt.Errorf("lat,long %q out of range", s)
	}
	return ll, nil
}

// BoundingBox는 지도 뷰의 경계 영역입니다
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// BoxAround는 중심점과 위/경도 범위로 경계 영역을 만듭니다
func BoxAround(center LatLong, latSpan, lngSpan float64) BoundingBox {
	return BoundingBox{
		North: center.Latitude + latSpan/2,
		South: center.Latitude - latSpan/2,
		West:  center.Longitude - lngSpan/2,
		East:  center.Longitude + lngSpan/2,
	}
}

// Validate는 경계 영역의 유효성을 검증합니다
func (b BoundingBox) Validate() error {
	if b.North < b.South {
		return fmt.Errorf("north %g is below south %g", b.North, b.South)
	}
	if !(LatLong{Latitude: b.North, Longitude: b.West}).Valid() ||
		!(LatLong{Latitude: b.South, Longitude: b.East}).Valid() {
		return fmt.Errorf("bounding box %s out of range", b)
	}
	return nil
}

// Contains는 좌표가 영역 안에 있는지 확인합니다.
// West > East 인 경우 날짜변경선을 가로지르는 영역으로 취급합니다.
func (b BoundingBox) Contains(ll LatLong) bool {
	if ll.Latitude < b.South || ll.Latitude > b.North {
		return false
	}
	if b.West <= b.East {
		return ll.Longitude >= b.West && ll.Longitude <= b.East
	}
	return ll.Longitude >= b.West || ll.Longitude <= b.East
}

// Center는 영역의 중심점을 반환합니다
func (b BoundingBox) Center() LatLong {
	lng := (b.West + b.East) / 2
	if b.West > b.East {
		lng += 180
		if lng > 180 {
			lng -= 360
		}
	}
	return LatLong{Latitude: (b.North + b.South) / 2, Longitude: lng}
}

// String은 S,W,N,E 순서의 bbox 쿼리 문자열을 반환합니다
func (b BoundingBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.South, b.West, b.North, b.East)
}
