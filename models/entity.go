package models

import (
	"sync"

	"github.com/aukilabs/octree/octree"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Entity is an object of a scene, indexed by the bounding box of its oriented
// extents.
type Entity struct {
	ID   uint32
	UUID string

	mutex   sync.RWMutex
	pose    Pose
	extents mgl32.Vec3

	// box the entity is currently indexed with, guarded by the scene
	bounds octree.AABB
}

func (e *Entity) Pose() Pose {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.pose
}

// Extents returns the half size of the entity in its local frame.
func (e *Entity) Extents() mgl32.Vec3 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.extents
}

// Bounds returns the world axis-aligned box of the entity.
func (e *Entity) Bounds() octree.AABB {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.pose.Bounds(e.extents)
}

func (e *Entity) setPose(v Pose) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.pose = v
}

// EntityView is the JSON representation of an entity.
type EntityView struct {
	ID      uint32      `json:"id"`
	UUID    string      `json:"uuid"`
	Pose    Pose        `json:"pose"`
	Extents mgl32.Vec3  `json:"extents"`
	Bounds  octree.AABB `json:"bounds"`
}

func (e *Entity) View() EntityView {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return EntityView{
		ID:      e.ID,
		UUID:    e.UUID,
		Pose:    e.pose,
		Extents: e.extents,
		Bounds:  e.pose.Bounds(e.extents),
	}
}

type Pose struct {
	Position mgl32.Vec3 `json:"position"`
	Rotation mgl32.Quat `json:"rotation"`
}

// NewPose returns a pose at the given position without rotation.
func NewPose(position mgl32.Vec3) Pose {
	return Pose{
		Position: position,
		Rotation: mgl32.QuatIdent(),
	}
}

// Bounds returns the axis-aligned box enclosing a box of the given half
// extents placed at the pose.
func (p Pose) Bounds(extents mgl32.Vec3) octree.AABB {
	m := p.Rotation.Normalize().Mat4()

	var half mgl32.Vec3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			half[row] += math32.Abs(m.At(row, col)) * extents[col]
		}
	}

	return octree.AABB{
		Min: p.Position.Sub(half),
		Max: p.Position.Add(half),
	}
}
