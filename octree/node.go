package octree

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// NumObjectsAllowed is the number of objects a leaf holds before it splits.
const NumObjectsAllowed = 8

// Object is an indexed value with the bounding box it was added with. The box
// is never updated by the tree: a value that moves has to be removed and
// added again.
type Object[T comparable] struct {
	Value  T
	Bounds AABB
}

// Node is a cubic region of an octree.
//
// Objects are stored at the deepest node whose loose bounds fully contain
// them, unless the node is under its capacity or at the minimum size.
type Node[T comparable] struct {
	center     mgl32.Vec3
	baseLength float32
	looseness  float32
	minSize    float32

	// loose edge length and bounds
	adjLength   float32
	bounds      AABB
	childBounds [8]AABB

	objects []Object[T]

	// nil for leaves, fully populated otherwise
	children *[8]*Node[T]
}

func newNode[T comparable](baseLength, minSize, looseness float32, center mgl32.Vec3) *Node[T] {
	n := &Node[T]{}
	n.setValues(baseLength, minSize, looseness, center)
	return n
}

func (n *Node[T]) setValues(baseLength, minSize, looseness float32, center mgl32.Vec3) {
	n.baseLength = baseLength
	n.minSize = minSize
	n.looseness = looseness
	n.center = center
	n.adjLength = looseness * baseLength
	n.bounds = NewCube(center, n.adjLength)

	quarter := baseLength / 4
	childLength := (baseLength / 2) * looseness
	for i := range n.childBounds {
		n.childBounds[i] = NewCube(center.Add(childOffset(i, quarter)), childLength)
	}
}

// childOffset returns the offset from a node center to the center of its
// child i. It mirrors the encoding of BestFitChild.
func childOffset(i int, distance float32) mgl32.Vec3 {
	offset := mgl32.Vec3{-distance, distance, -distance}
	if i&1 != 0 {
		offset[0] = distance
	}
	if i&4 != 0 {
		offset[1] = -distance
	}
	if i&2 != 0 {
		offset[2] = distance
	}
	return offset
}

func (n *Node[T]) Center() mgl32.Vec3 {
	return n.center
}

// BaseLength returns the edge length of the node without looseness.
func (n *Node[T]) BaseLength() float32 {
	return n.baseLength
}

// Bounds returns the loose bounds of the node.
func (n *Node[T]) Bounds() AABB {
	return n.bounds
}

// Children returns the 8 children of the node, or nil for a leaf.
func (n *Node[T]) Children() []*Node[T] {
	if n.children == nil {
		return nil
	}
	return n.children[:]
}

// Objects returns the objects stored at this node, excluding descendants.
func (n *Node[T]) Objects() []Object[T] {
	return n.objects
}

// Add stores value in the subtree. It returns false, storing nothing, when
// bounds does not fit entirely inside the loose bounds of the node.
func (n *Node[T]) Add(value T, bounds AABB) bool {
	if !n.bounds.Contains(bounds) {
		return false
	}
	n.subAdd(value, bounds)
	return true
}

func (n *Node[T]) subAdd(value T, bounds AABB) {
	if n.children == nil {
		if len(n.objects) < NumObjectsAllowed || n.baseLength/2 < n.minSize {
			n.objects = append(n.objects, Object[T]{Value: value, Bounds: bounds})
			return
		}

		n.split()

		kept := n.objects[:0]
		for _, obj := range n.objects {
			i := n.BestFitChild(obj.Bounds.Center())
			if n.childBounds[i].Contains(obj.Bounds) {
				n.children[i].subAdd(obj.Value, obj.Bounds)
			} else {
				kept = append(kept, obj)
			}
		}
		clear(n.objects[len(kept):])
		n.objects = kept
	}

	i := n.BestFitChild(bounds.Center())
	if n.childBounds[i].Contains(bounds) {
		n.children[i].subAdd(value, bounds)
		return
	}
	n.objects = append(n.objects, Object[T]{Value: value, Bounds: bounds})
}

// Remove removes value from the subtree, searching every child. It returns
// false if value is not stored.
func (n *Node[T]) Remove(value T) bool {
	removed := n.removeLocal(value)

	if !removed && n.children != nil {
		for _, c := range n.children {
			if c.Remove(value) {
				removed = true
				break
			}
		}
	}

	if removed && n.children != nil && n.shouldMerge() {
		n.merge()
	}
	return removed
}

// RemoveWithBounds removes value using the bounds it was added with, only
// descending into the child that would have received it.
func (n *Node[T]) RemoveWithBounds(value T, bounds AABB) bool {
	if !n.bounds.Contains(bounds) {
		return false
	}
	return n.subRemove(value, bounds)
}

func (n *Node[T]) subRemove(value T, bounds AABB) bool {
	removed := n.removeLocal(value)

	if !removed && n.children != nil {
		i := n.BestFitChild(bounds.Center())
		removed = n.children[i].subRemove(value, bounds)
	}

	if removed && n.children != nil && n.shouldMerge() {
		n.merge()
	}
	return removed
}

func (n *Node[T]) removeLocal(value T) bool {
	i := slices.IndexFunc(n.objects, func(obj Object[T]) bool {
		return obj.Value == value
	})
	if i < 0 {
		return false
	}
	n.objects = slices.Delete(n.objects, i, i+1)
	return true
}

// BestFitChild returns the index of the child octant containing point. Points
// on a split plane go toward the lower index.
func (n *Node[T]) BestFitChild(point mgl32.Vec3) int {
	i := 0
	if point.X() > n.center.X() {
		i |= 1
	}
	if point.Y() < n.center.Y() {
		i |= 4
	}
	if point.Z() > n.center.Z() {
		i |= 2
	}
	return i
}

func (n *Node[T]) split() {
	quarter := n.baseLength / 4
	length := n.baseLength / 2

	var children [8]*Node[T]
	for i := range children {
		children[i] = newNode[T](length, n.minSize, n.looseness, n.center.Add(childOffset(i, quarter)))
	}
	n.children = &children
	instrumentSplit()
}

func (n *Node[T]) merge() {
	for _, c := range n.children {
		n.objects = append(n.objects, c.objects...)
	}
	n.children = nil
	instrumentMerge()
}

// shouldMerge only looks one level down: a child that has children of its own
// prevents the merge.
func (n *Node[T]) shouldMerge() bool {
	total := len(n.objects)
	for _, c := range n.children {
		if c.children != nil {
			return false
		}
		total += len(c.objects)
	}
	return total <= NumObjectsAllowed
}

func (n *Node[T]) hasAnyObjects() bool {
	if len(n.objects) != 0 {
		return true
	}
	if n.children == nil {
		return false
	}
	for _, c := range n.children {
		if c.hasAnyObjects() {
			return true
		}
	}
	return false
}

// IsColliding reports whether any stored object intersects region.
func (n *Node[T]) IsColliding(region AABB) bool {
	if !n.bounds.Intersects(region) {
		return false
	}

	for _, obj := range n.objects {
		if obj.Bounds.Intersects(region) {
			return true
		}
	}

	if n.children != nil {
		for _, c := range n.children {
			if c.IsColliding(region) {
				return true
			}
		}
	}
	return false
}

// GetColliding appends to out the values of the objects intersecting region.
func (n *Node[T]) GetColliding(region AABB, out []T) []T {
	if !n.bounds.Intersects(region) {
		return out
	}

	for _, obj := range n.objects {
		if obj.Bounds.Intersects(region) {
			out = append(out, obj.Value)
		}
	}

	if n.children != nil {
		for _, c := range n.children {
			out = c.GetColliding(region, out)
		}
	}
	return out
}

// IsCollidingRay reports whether the ray hits a stored object within
// maxDistance.
func (n *Node[T]) IsCollidingRay(r Ray, maxDistance float32) bool {
	if hit, d := n.bounds.IntersectRay(r); !hit || d > maxDistance {
		return false
	}

	for _, obj := range n.objects {
		if hit, d := obj.Bounds.IntersectRay(r); hit && d <= maxDistance {
			return true
		}
	}

	if n.children != nil {
		for _, c := range n.children {
			if c.IsCollidingRay(r, maxDistance) {
				return true
			}
		}
	}
	return false
}

// GetCollidingRay appends to out the values of the objects hit by the ray
// within maxDistance.
func (n *Node[T]) GetCollidingRay(r Ray, maxDistance float32, out []T) []T {
	if hit, d := n.bounds.IntersectRay(r); !hit || d > maxDistance {
		return out
	}

	for _, obj := range n.objects {
		if hit, d := obj.Bounds.IntersectRay(r); hit && d <= maxDistance {
			out = append(out, obj.Value)
		}
	}

	if n.children != nil {
		for _, c := range n.children {
			out = c.GetCollidingRay(r, maxDistance, out)
		}
	}
	return out
}

// GetWithinFrustum appends to out the values of the objects at least
// partially inside the frustum.
func (n *Node[T]) GetWithinFrustum(f Frustum, out []T) []T {
	if !f.IntersectsAABB(n.bounds) {
		return out
	}

	for _, obj := range n.objects {
		if f.IntersectsAABB(obj.Bounds) {
			out = append(out, obj.Value)
		}
	}

	if n.children != nil {
		for _, c := range n.children {
			out = c.GetWithinFrustum(f, out)
		}
	}
	return out
}

// ShrinkIfPossible returns the node to use as root once the content only
// occupies a single octant. It returns n, possibly halved in place, when no
// child can take over.
func (n *Node[T]) ShrinkIfPossible(minLength float32) *Node[T] {
	if n.baseLength < 2*minLength {
		return n
	}
	if len(n.objects) == 0 && n.children == nil {
		return n
	}

	bestFit := -1
	for _, obj := range n.objects {
		i := n.BestFitChild(obj.Bounds.Center())
		if bestFit >= 0 && i != bestFit {
			return n
		}
		if !n.childBounds[i].Contains(obj.Bounds) {
			return n
		}
		bestFit = i
	}

	if n.children != nil {
		childHadContent := false
		for i, c := range n.children {
			if !c.hasAnyObjects() {
				continue
			}
			if childHadContent {
				return n
			}
			if bestFit >= 0 && bestFit != i {
				return n
			}
			childHadContent = true
			bestFit = i
		}
	}

	if n.children == nil {
		// everything already fits the octant:
		n.setValues(n.baseLength/2, n.minSize, n.looseness, n.childBounds[bestFit].Center())
		return n
	}

	if bestFit < 0 {
		return n
	}

	root := n.children[bestFit]
	for _, obj := range n.objects {
		root.subAdd(obj.Value, obj.Bounds)
	}
	return root
}

func (n *Node[T]) setChildren(children [8]*Node[T]) {
	n.children = &children
}

func (n *Node[T]) walk(depth int, fn func(n *Node[T], depth int)) {
	fn(n, depth)
	if n.children == nil {
		return
	}
	for _, c := range n.children {
		c.walk(depth+1, fn)
	}
}
