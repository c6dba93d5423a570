package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	// London to Paris, roughly 344 km.
	d := Haversine(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, 344, d, 5)

	// Zero distance.
	assert.InDelta(t, 0, Haversine(10, 10, 10, 10), 1e-9)

	// Symmetry.
	assert.InDelta(t,
		Haversine(35.0, 139.0, -33.9, 151.2),
		Haversine(-33.9, 151.2, 35.0, 139.0),
		1e-9)
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(0, 0))
	assert.True(t, ValidCoordinates(90, 180))
	assert.True(t, ValidCoordinates(-90, -180))

	assert.False(t, ValidCoordinates(90.1, 0))
	assert.False(t, ValidCoordinates(-91, 0))
	assert.False(t, ValidCoordinates(0, 181))
	assert.False(t, ValidCoordinates(0, -180.5))
}
