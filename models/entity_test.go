package models

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func TestEntityPose(t *testing.T) {
	var e Entity

	p := Pose{
		Position: mgl32.Vec3{1, 2, 3},
		Rotation: mgl32.Quat{W: 7, V: mgl32.Vec3{4, 5, 6}},
	}

	e.setPose(p)
	require.Equal(t, p, e.Pose())
}

func TestPoseBounds(t *testing.T) {
	t.Run("without rotation", func(t *testing.T) {
		p := NewPose(mgl32.Vec3{1, 2, 3})

		bounds := p.Bounds(mgl32.Vec3{2, 1, 0.5})
		require.Equal(t, mgl32.Vec3{-1, 1, 2.5}, bounds.Min)
		require.Equal(t, mgl32.Vec3{3, 3, 3.5}, bounds.Max)
	})

	t.Run("quarter turn around z", func(t *testing.T) {
		p := Pose{
			Position: mgl32.Vec3{0, 0, 0},
			Rotation: mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}),
		}

		bounds := p.Bounds(mgl32.Vec3{2, 1, 0.5})
		require.InDelta(t, 1, bounds.Max.X(), 0.0001)
		require.InDelta(t, 2, bounds.Max.Y(), 0.0001)
		require.InDelta(t, 0.5, bounds.Max.Z(), 0.0001)
		require.InDelta(t, -1, bounds.Min.X(), 0.0001)
	})

	t.Run("unnormalized rotation", func(t *testing.T) {
		p := Pose{Rotation: mgl32.Quat{W: 3}}

		bounds := p.Bounds(mgl32.Vec3{1, 1, 1})
		require.InDelta(t, 1, bounds.Max.X(), 0.0001)
		require.InDelta(t, 1, bounds.Max.Y(), 0.0001)
		require.InDelta(t, 1, bounds.Max.Z(), 0.0001)
	})

	t.Run("eighth turn around y", func(t *testing.T) {
		p := Pose{Rotation: mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0})}

		bounds := p.Bounds(mgl32.Vec3{1, 1, 1})
		require.InDelta(t, 1.4142, bounds.Max.X(), 0.001)
		require.InDelta(t, 1, bounds.Max.Y(), 0.0001)
		require.InDelta(t, 1.4142, bounds.Max.Z(), 0.001)
	})
}

func TestEntityView(t *testing.T) {
	e := Entity{
		ID:      3,
		UUID:    "entity-uuid",
		pose:    NewPose(mgl32.Vec3{1, 1, 1}),
		extents: mgl32.Vec3{1, 1, 1},
	}

	v := e.View()
	require.Equal(t, uint32(3), v.ID)
	require.Equal(t, "entity-uuid", v.UUID)
	require.Equal(t, e.pose, v.Pose)
	require.Equal(t, e.extents, v.Extents)
	require.Equal(t, e.Bounds(), v.Bounds)
	require.Equal(t, mgl32.Vec3{0, 0, 0}, v.Bounds.Min)
	require.Equal(t, mgl32.Vec3{2, 2, 2}, v.Bounds.Max)
}
