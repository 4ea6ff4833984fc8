package octree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// MaxGrowAttempts is the number of times Add grows the tree before giving
	// up on an object.
	MaxGrowAttempts = 20

	// minNodeSizeRatio is the initial size divided by the minimum node size
	// used when the configured one is not positive.
	minNodeSizeRatio = 1024

	ErrTypeOutOfBounds   = "octree_out_of_bounds"
	ErrTypeInvalidConfig = "octree_invalid_config"
)

// Octree is a dynamic loose octree indexing values by bounding box. It grows
// when an added object does not fit in its root and shrinks back when
// removals leave the content in a single octant.
//
// An Octree is not safe for concurrent use.
type Octree[T comparable] struct {
	root        *Node[T]
	initialSize float32
	minSize     float32
	looseness   float32
	count       int
}

// New creates an octree centered on center. Looseness is clamped to [1, 2].
// A minimum node size that is not positive, or greater than the initial
// size, is reported and replaced.
func New[T comparable](center mgl32.Vec3, initialSize, minNodeSize, looseness float32) *Octree[T] {
	if !(initialSize > 0) {
		logs.Warn(errors.New("initial world size must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("initial_size", initialSize))
		initialSize = 1
	}

	switch {
	case !(minNodeSize > 0):
		logs.Warn(errors.New("minimum node size must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("min_node_size", minNodeSize).
			WithTag("initial_size", initialSize))
		minNodeSize = initialSize / minNodeSizeRatio

	case minNodeSize > initialSize:
		logs.Warn(errors.New("minimum node size is greater than the initial world size").
			WithType(ErrTypeInvalidConfig).
			WithTag("min_node_size", minNodeSize).
			WithTag("initial_size", initialSize))
		minNodeSize = initialSize
	}

	if !(looseness >= 1) {
		looseness = 1
	}
	looseness = math32.Min(2, looseness)

	return &Octree[T]{
		root:        newNode[T](initialSize, minNodeSize, looseness, center),
		initialSize: initialSize,
		minSize:     minNodeSize,
		looseness:   looseness,
	}
}

// Add indexes value with the given bounds, growing the tree as needed. It
// returns an error typed ErrTypeOutOfBounds when the bounds still do not fit
// after MaxGrowAttempts growths, in which case the tree is left as it was.
func (o *Octree[T]) Add(value T, bounds AABB) error {
	// growing never modifies the previous root:
	root := o.root

	attempts := 0
	for !o.root.Add(value, bounds) {
		if attempts >= MaxGrowAttempts {
			o.root = root
			instrumentAddFailure()
			return errors.New("object does not fit in the octree").
				WithType(ErrTypeOutOfBounds).
				WithTag("min", bounds.Min).
				WithTag("max", bounds.Max).
				WithTag("root_length", root.baseLength)
		}

		o.grow(bounds.Center().Sub(o.root.center))
		attempts++
	}

	o.count++
	return nil
}

// Remove removes value from the tree. It returns false if value is not
// indexed.
func (o *Octree[T]) Remove(value T) bool {
	if !o.root.Remove(value) {
		return false
	}

	o.count--
	o.shrink()
	return true
}

// RemoveWithBounds removes value using the bounds it was added with, only
// visiting the nodes on the path bounds leads to. Growing can re-parent the
// old root away from that path, in which case the whole tree is searched.
func (o *Octree[T]) RemoveWithBounds(value T, bounds AABB) bool {
	if !o.root.RemoveWithBounds(value, bounds) && !o.root.Remove(value) {
		return false
	}

	o.count--
	o.shrink()
	return true
}

func (o *Octree[T]) IsColliding(region AABB) bool {
	return o.root.IsColliding(region)
}

// GetColliding returns the values whose bounds intersect region.
func (o *Octree[T]) GetColliding(region AABB) []T {
	return o.root.GetColliding(region, nil)
}

func (o *Octree[T]) IsCollidingRay(r Ray, maxDistance float32) bool {
	return o.root.IsCollidingRay(r, maxDistance)
}

// GetCollidingRay returns the values whose bounds are hit by the ray within
// maxDistance.
func (o *Octree[T]) GetCollidingRay(r Ray, maxDistance float32) []T {
	return o.root.GetCollidingRay(r, maxDistance, nil)
}

// GetWithinFrustum returns the values whose bounds are at least partially
// inside the frustum.
func (o *Octree[T]) GetWithinFrustum(f Frustum) []T {
	return o.root.GetWithinFrustum(f, nil)
}

// Count returns the number of indexed values.
func (o *Octree[T]) Count() int {
	return o.count
}

func (o *Octree[T]) Root() *Node[T] {
	return o.root
}

// MaxBounds returns the loose bounds of the root, which contain every indexed
// value.
func (o *Octree[T]) MaxBounds() AABB {
	return o.root.bounds
}

// MaxCount returns the largest number of objects held by a single node.
func (o *Octree[T]) MaxCount() int {
	maxCount := 0
	o.root.walk(0, func(n *Node[T], _ int) {
		maxCount = max(maxCount, len(n.objects))
	})
	return maxCount
}

// ChildBounds returns the loose bounds of every node, root first, in depth
// first order.
func (o *Octree[T]) ChildBounds() []AABB {
	var bounds []AABB
	o.root.walk(0, func(n *Node[T], _ int) {
		bounds = append(bounds, n.bounds)
	})
	return bounds
}

func (o *Octree[T]) grow(direction mgl32.Vec3) {
	oldRoot := o.root
	half := oldRoot.baseLength / 2

	sign := func(v float32) float32 {
		if v >= 0 {
			return 1
		}
		return -1
	}
	center := oldRoot.center.Add(mgl32.Vec3{
		sign(direction.X()) * half,
		sign(direction.Y()) * half,
		sign(direction.Z()) * half,
	})

	o.root = newNode[T](oldRoot.baseLength*2, o.minSize, o.looseness, center)

	if oldRoot.hasAnyObjects() {
		rootPos := o.root.BestFitChild(oldRoot.center)

		var children [8]*Node[T]
		for i := range children {
			if i == rootPos {
				children[i] = oldRoot
				continue
			}
			children[i] = newNode[T](oldRoot.baseLength, o.minSize, o.looseness, center.Add(childOffset(i, half)))
		}
		o.root.setChildren(children)
	}

	logs.WithTag("root_length", o.root.baseLength).
		WithTag("root_center", o.root.center).
		Debug("octree grown")
	instrumentGrow()
}

func (o *Octree[T]) shrink() {
	length := o.root.baseLength
	root := o.root.ShrinkIfPossible(o.initialSize)
	if root != o.root || root.baseLength != length {
		logs.WithTag("root_length", root.baseLength).
			WithTag("root_center", root.center).
			Debug("octree shrunk")
		instrumentShrink()
	}
	o.root = root
}
