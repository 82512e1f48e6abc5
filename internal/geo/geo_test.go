package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLatLong(t *testing.T) {
	ll, err := ParseLatLong(" 47.6062, -122.3321 ")
	require.NoError(t, err)
	assert.InDelta(t, 47.6062, ll.Latitude, 1e-9)
	assert.InDelta(t, -122.3321, ll.Longitude, 1e-9)

	for _, bad := range []string{"", "47.6", "a,b", "91,0", "0,181", "1,2,3"} {
		_, err := ParseLatLong(bad)
		assert.Error(t, err, bad)
	}
}

func TestBoundingBoxContains(t *testing.T) {
	box := BoundingBox{North: 48, South: 47, West: -123, East: -122}
	assert.True(t, box.Contains(LatLong{Latitude: 47.5, Longitude: -122.5}))
	assert.False(t, box.Contains(LatLong{Latitude: 46.9, Longitude: -122.5}))
	assert.False(t, box.Contains(LatLong{Latitude: 47.5, Longitude: -121.9}))

	dateline := BoundingBox{North: 10, South: -10, West: 170, East: -170}
	assert.True(t, dateline.Contains(LatLong{Latitude: 0, Longitude: 179}))
	assert.True(t, dateline.Contains(LatLong{Latitude: 0, Longitude: -175}))
	assert.False(t, dateline.Contains(LatLong{Latitude: 0, Longitude: 0}))
}

func TestBoundingBoxValidate(t *testing.T) {
	assert.NoError(t, BoundingBox{North: 1, South: 0, West: 0, East: 1}.Validate())
	assert.Error(t, BoundingBox{North: 0, South: 1, West: 0, East: 1}.Validate())
	assert.Error(t, BoundingBox{North: 95, South: 0, West: 0, East: 1}.Validate())
}

func TestBoxAroundAndCenter(t *testing.T) {
	box := BoxAround(LatLong{Latitude: 10, Longitude: 20}, 2, 4)
	assert.Equal(t, BoundingBox{North: 11, South: 9, West: 18, East: 22}, box)
	assert.Equal(t, LatLong{Latitude: 10, Longitude: 20}, box.Center())
	assert.Equal(t, "9,18,11,22", box.String())

	dateline := BoundingBox{North: 1, South: -1, West: 170, East: -170}
	assert.InDelta(t, 180, dateline.Center().Longitude, 1e-9)
}
