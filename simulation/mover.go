package simulation

import (
	"math/rand"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/octree/models"
	"github.com/aukilabs/octree/octree"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Mover moves the entities it spawned in straight lines inside an arena,
// bouncing off its walls. Spawned entities are not rotated.
type Mover struct {
	scene *models.Scene
	arena octree.AABB
	speed float32

	mutex      sync.Mutex
	rand       *rand.Rand
	velocities map[uint32]mgl32.Vec3
}

// NewMover creates a mover for the entities of the given scene. Speed is in
// units per second.
func NewMover(scene *models.Scene, arena octree.AABB, speed float32, seed int64) *Mover {
	return &Mover{
		scene:      scene,
		arena:      arena,
		speed:      speed,
		rand:       rand.New(rand.NewSource(seed)),
		velocities: make(map[uint32]mgl32.Vec3),
	}
}

// Spawn adds n entities of the given half extents at random positions of the
// arena, each with a random direction.
func (m *Mover) Spawn(n int, extents mgl32.Vec3) ([]*models.Entity, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entities := make([]*models.Entity, 0, n)
	for i := 0; i < n; i++ {
		var position mgl32.Vec3
		for axis := range position {
			low, high := m.limits(axis, extents)
			position[axis] = low + m.rand.Float32()*(high-low)
		}

		e, err := m.scene.AddEntity(models.NewPose(position), extents)
		if err != nil {
			return entities, errors.New("spawning entity failed").
				WithTag("scene_id", m.scene.ID).
				Wrap(err)
		}

		m.velocities[e.ID] = m.randomVelocity()
		entities = append(entities, e)
	}
	return entities, nil
}

// Despawn removes an entity spawned by the mover from the scene.
func (m *Mover) Despawn(id uint32) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.velocities, id)
	return m.scene.RemoveEntity(id)
}

// Velocity returns the velocity of a spawned entity.
func (m *Mover) Velocity(id uint32) (mgl32.Vec3, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	v, ok := m.velocities[id]
	return v, ok
}

// Step advances every spawned entity by dt.
func (m *Mover) Step(dt time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	seconds := float32(dt.Seconds())

	for id, velocity := range m.velocities {
		e, ok := m.scene.EntityByID(id)
		if !ok {
			delete(m.velocities, id)
			continue
		}

		pose := e.Pose()
		extents := e.Extents()
		next := pose.Position.Add(velocity.Mul(seconds))

		for axis := range next {
			low, high := m.limits(axis, extents)

			switch {
			case next[axis] < low:
				next[axis] = 2*low - next[axis]
				velocity[axis] = -velocity[axis]

			case next[axis] > high:
				next[axis] = 2*high - next[axis]
				velocity[axis] = -velocity[axis]
			}

			next[axis] = math32.Max(low, math32.Min(high, next[axis]))
		}

		m.velocities[id] = velocity
		pose.Position = next

		if err := m.scene.MoveEntity(id, pose); err != nil {
			logs.WithTag("scene_id", m.scene.ID).
				WithTag("entity_id", id).
				Warn(err)
		}
	}
}

// Start steps the entities on every frame of the scene until cancel is
// called.
func (m *Mover) Start() (cancel func()) {
	dt := m.scene.FrameDuration()
	return m.scene.HandleFrame(func() {
		m.Step(dt)
	})
}

// limits returns the range the center of a box of the given half extents
// can take on an axis of the arena.
func (m *Mover) limits(axis int, extents mgl32.Vec3) (low, high float32) {
	low = m.arena.Min[axis] + extents[axis]
	high = m.arena.Max[axis] - extents[axis]
	if low > high {
		center := (m.arena.Min[axis] + m.arena.Max[axis]) / 2
		return center, center
	}
	return low, high
}

func (m *Mover) randomVelocity() mgl32.Vec3 {
	direction := mgl32.Vec3{
		m.rand.Float32()*2 - 1,
		m.rand.Float32()*2 - 1,
		m.rand.Float32()*2 - 1,
	}
	if direction.Len() == 0 {
		direction = mgl32.Vec3{1, 0, 0}
	}
	return direction.Normalize().Mul(m.speed)
}
