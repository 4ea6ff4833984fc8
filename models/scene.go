package models

import (
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octree/octree"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

const (
	ErrTypeEntityNotFound    = "entity_not_found"
	ErrTypeEntityOutOfBounds = "entity_out_of_bounds"
)

// IndexConfig describes the octree created for each scene.
type IndexConfig struct {
	Center      mgl32.Vec3
	InitialSize float32
	MinNodeSize float32
	Looseness   float32
}

// Scene represents a set of moving entities sharing a spatial index. The
// index is not synchronized on its own: every access goes through the scene
// mutex.
type Scene struct {
	ID        uint32
	SceneUUID string

	entityIDs SequentialIDGenerator
	mutex     sync.RWMutex
	entities  map[uint32]*Entity
	index     *octree.Octree[*Entity]

	frameDuration   time.Duration
	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewScene(id uint32, frameDuration time.Duration, conf IndexConfig) *Scene {
	return &Scene{
		ID:             id,
		SceneUUID:      uuid.New().String(),
		entities:       make(map[uint32]*Entity),
		index:          octree.New[*Entity](conf.Center, conf.InitialSize, conf.MinNodeSize, conf.Looseness),
		frameDuration:  frameDuration,
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(frameDuration),
		frameHandlers:  make(map[uint32]func()),
	}
}

func (s *Scene) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
	})
}

// AddEntity creates an entity with the given pose and half extents and
// indexes it.
func (s *Scene) AddEntity(pose Pose, extents mgl32.Vec3) (*Entity, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e := &Entity{
		ID:      s.entityIDs.New(),
		UUID:    uuid.New().String(),
		pose:    pose,
		extents: extents,
		bounds:  pose.Bounds(extents),
	}

	if err := s.index.Add(e, e.bounds); err != nil {
		s.entityIDs.Reuse(e.ID)
		return nil, errors.New("adding entity failed").
			WithType(ErrTypeEntityOutOfBounds).
			WithTag("scene_id", s.ID).
			Wrap(err)
	}

	s.entities[e.ID] = e
	instrumentEntityCount(s.ID, len(s.entities))
	return e, nil
}

func (s *Scene) RemoveEntity(id uint32) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return errors.New("entity not found").
			WithType(ErrTypeEntityNotFound).
			WithTag("scene_id", s.ID).
			WithTag("entity_id", id)
	}

	s.index.RemoveWithBounds(e, e.bounds)
	delete(s.entities, id)
	s.entityIDs.Reuse(id)

	instrumentEntityCount(s.ID, len(s.entities))
	return nil
}

// MoveEntity sets the pose of an entity and re-indexes it with its new
// bounds. The entity keeps its previous pose if the new bounds can't be
// indexed.
func (s *Scene) MoveEntity(id uint32, pose Pose) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return errors.New("entity not found").
			WithType(ErrTypeEntityNotFound).
			WithTag("scene_id", s.ID).
			WithTag("entity_id", id)
	}

	bounds := pose.Bounds(e.Extents())
	s.index.RemoveWithBounds(e, e.bounds)

	if err := s.index.Add(e, bounds); err != nil {
		// the previous box was indexed before, growing again makes it fit:
		s.index.Add(e, e.bounds)

		return errors.New("moving entity failed").
			WithType(ErrTypeEntityOutOfBounds).
			WithTag("scene_id", s.ID).
			WithTag("entity_id", id).
			Wrap(err)
	}

	e.bounds = bounds
	e.setPose(pose)
	instrumentEntityMove()
	return nil
}

func (s *Scene) EntityByID(id uint32) (*Entity, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e, ok := s.entities[id]
	return e, ok
}

func (s *Scene) Entities() []*Entity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entities := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		entities = append(entities, e)
	}
	return entities
}

func (s *Scene) EntityCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.index.Count()
}

// Colliding returns the entities whose bounds intersect region.
func (s *Scene) Colliding(region octree.AABB) []*Entity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.index.GetColliding(region)
}

func (s *Scene) IsColliding(region octree.AABB) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.index.IsColliding(region)
}

// Raycast returns the entities hit by the ray within maxDistance.
func (s *Scene) Raycast(r octree.Ray, maxDistance float32) []*Entity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.index.GetCollidingRay(r, maxDistance)
}

// Visible returns the entities at least partially inside the frustum.
func (s *Scene) Visible(f octree.Frustum) []*Entity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.index.GetWithinFrustum(f)
}

func (s *Scene) DebugInfo() octree.DebugInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.index.DebugInfo()
}

// NodeBounds returns the loose bounds of every node of the scene index, root
// first.
func (s *Scene) NodeBounds() []octree.AABB {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.index.ChildBounds()
}

func (s *Scene) FrameDuration() time.Duration {
	return s.frameDuration
}

// HandleFrame registers h to be called on every frame until cancel is called.
// Handlers run with the frame lock held: calling cancel or HandleFrame from
// within h blocks forever.
func (s *Scene) HandleFrame(h func()) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			s.frameMutex.Lock()
			defer s.frameMutex.Unlock()

			delete(s.frameHandlers, id)
			s.frameHandlerIDs.Reuse(id)
		})
	}
}

// StartDispatchFrames calls the frame handlers on each tick until the scene
// is closed. It blocks.
func (s *Scene) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		for {
			select {
			case <-s.closeFrameChan:
				return

			case <-s.frameTicker.C:
				s.frameMutex.RLock()
				for _, h := range s.frameHandlers {
					h()
				}
				s.frameMutex.RUnlock()
			}
		}
	})
}

type SceneStore struct {
	// The octree configuration of new scenes.
	IndexConfig IndexConfig

	// The frame duration of new scenes.
	FrameDuration time.Duration

	initOnce sync.Once
	mutex    sync.RWMutex
	scenes   map[uint32]*Scene
	ids      SequentialIDGenerator
}

func (s *SceneStore) init() {
	s.scenes = make(map[uint32]*Scene)

	if s.FrameDuration <= 0 {
		s.FrameDuration = time.Millisecond * 15
	}
}

// New creates a scene and adds it to the store.
func (s *SceneStore) New() *Scene {
	s.initOnce.Do(s.init)

	scene := NewScene(s.ids.New(), s.FrameDuration, s.IndexConfig)
	s.Add(scene)
	return scene
}

func (s *SceneStore) Add(scene *Scene) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.scenes[scene.ID] = scene
	instrumentSceneCount(len(s.scenes))
}

func (s *SceneStore) Remove(scene *Scene) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.scenes, scene.ID)
	scene.Close()
	s.ids.Reuse(scene.ID)

	instrumentSceneCount(len(s.scenes))
	instrumentEntityCount(scene.ID, 0)
}

func (s *SceneStore) Get(id uint32) (*Scene, bool) {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	scene, ok := s.scenes[id]
	return scene, ok
}

func (s *SceneStore) List() []*Scene {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	scenes := make([]*Scene, 0, len(s.scenes))
	for _, scene := range s.scenes {
		scenes = append(scenes, scene)
	}
	return scenes
}
