package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointDistance(t *testing.T) {
	a := NewPoint2D(3, 4)
	b := NewPoint2D(0, 0)
	assert.InDelta(t, 5, a.Distance(b), 1e-12)
}

func TestPointRound(t *testing.T) {
	assert.Equal(t, image.Pt(2, -3), NewPoint2D(1.5, -2.6).Round())
	assert.Equal(t, image.Pt(0, 0), NewPoint2D(0.49, -0.49).Round())
}

func TestCenteredRect(t *testing.T) {
	r := CenteredRect(100, 50, 20)
	assert.Equal(t, RectInt{X: 90, Y: 40, Width: 20, Height: 20}, r)
	assert.Equal(t, image.Rect(90, 40, 110, 60), r.Image())
}

func TestSize(t *testing.T) {
	s := Size{Width: 1280, Height: 720}
	assert.Equal(t, image.Pt(1280, 720), s.Point())
	assert.False(t, s.IsZero())
	assert.True(t, Size{Width: 640}.IsZero())
}
