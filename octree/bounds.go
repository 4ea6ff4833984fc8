package octree

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl32.Vec3 `json:"min"`
	Max mgl32.Vec3 `json:"max"`
}

// NewAABB returns the box of the given size centered on center.
func NewAABB(center, size mgl32.Vec3) AABB {
	extents := size.Mul(0.5)
	return AABB{
		Min: center.Sub(extents),
		Max: center.Add(extents),
	}
}

// NewCube returns the cube of the given edge length centered on center.
func NewCube(center mgl32.Vec3, length float32) AABB {
	return NewAABB(center, mgl32.Vec3{length, length, length})
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Extents returns the half size of the box.
func (b AABB) Extents() mgl32.Vec3 {
	return b.Size().Mul(0.5)
}

// Contains reports whether other lies entirely inside b. Touching faces
// count as contained.
func (b AABB) Contains(other AABB) bool {
	return b.Min.X() <= other.Min.X() && other.Max.X() <= b.Max.X() &&
		b.Min.Y() <= other.Min.Y() && other.Max.Y() <= b.Max.Y() &&
		b.Min.Z() <= other.Min.Z() && other.Max.Z() <= b.Max.Z()
}

func (b AABB) ContainsPoint(p mgl32.Vec3) bool {
	return b.Min.X() <= p.X() && p.X() <= b.Max.X() &&
		b.Min.Y() <= p.Y() && p.Y() <= b.Max.Y() &&
		b.Min.Z() <= p.Z() && p.Z() <= b.Max.Z()
}

// Intersects reports whether b and other overlap. Touching faces count as an
// intersection.
func (b AABB) Intersects(other AABB) bool {
	return b.Min.X() <= other.Max.X() && b.Max.X() >= other.Min.X() &&
		b.Min.Y() <= other.Max.Y() && b.Max.Y() >= other.Min.Y() &&
		b.Min.Z() <= other.Max.Z() && b.Max.Z() >= other.Min.Z()
}

// Expand returns b grown by amount on every side.
func (b AABB) Expand(amount float32) AABB {
	v := mgl32.Vec3{amount, amount, amount}
	return AABB{
		Min: b.Min.Sub(v),
		Max: b.Max.Add(v),
	}
}

// IntersectRay returns whether the ray hits the box and the distance along the
// ray to the entry point. A ray starting inside the box hits at distance 0.
func (b AABB) IntersectRay(r Ray) (bool, float32) {
	tMin := float32(0)
	tMax := math32.Inf(1)

	for axis := 0; axis < 3; axis++ {
		origin := r.Origin[axis]
		dir := r.Direction[axis]

		if dir == 0 {
			// parallel to the slab:
			if origin < b.Min[axis] || origin > b.Max[axis] {
				return false, -1
			}
			continue
		}

		inv := 1 / dir
		t1 := (b.Min[axis] - origin) * inv
		t2 := (b.Max[axis] - origin) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}

		tMin = math32.Max(tMin, t1)
		tMax = math32.Min(tMax, t2)
		if tMin > tMax {
			return false, -1
		}
	}

	return true, tMin
}

// Ray is a half line. Direction is expected to be normalized so that
// distances returned by queries are in world units.
type Ray struct {
	Origin    mgl32.Vec3 `json:"origin"`
	Direction mgl32.Vec3 `json:"direction"`
}

// NewRay returns a ray with a normalized direction.
func NewRay(origin, direction mgl32.Vec3) Ray {
	if direction.Len() != 0 {
		direction = direction.Normalize()
	}
	return Ray{
		Origin:    origin,
		Direction: direction,
	}
}

// Point returns the point at the given distance along the ray.
func (r Ray) Point(distance float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(distance))
}

// Plane is the set of points p where Normal·p + Distance == 0. Points with a
// positive signed distance are in front of the plane.
type Plane struct {
	Normal   mgl32.Vec3 `json:"normal"`
	Distance float32    `json:"distance"`
}

func (p Plane) SignedDistance(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) + p.Distance
}

func (p Plane) normalized() Plane {
	l := p.Normal.Len()
	if l == 0 {
		return p
	}
	return Plane{
		Normal:   p.Normal.Mul(1 / l),
		Distance: p.Distance / l,
	}
}

// Frustum is a convex volume bounded by six inward facing planes, ordered
// left, right, bottom, top, near, far.
type Frustum [6]Plane

// NewFrustum extracts the frustum planes of a view-projection matrix.
func NewFrustum(viewProj mgl32.Mat4) Frustum {
	r0 := viewProj.Row(0)
	r1 := viewProj.Row(1)
	r2 := viewProj.Row(2)
	r3 := viewProj.Row(3)

	plane := func(v mgl32.Vec4) Plane {
		return Plane{Normal: v.Vec3(), Distance: v.W()}.normalized()
	}

	return Frustum{
		plane(r3.Add(r0)),
		plane(r3.Sub(r0)),
		plane(r3.Add(r1)),
		plane(r3.Sub(r1)),
		plane(r3.Add(r2)),
		plane(r3.Sub(r2)),
	}
}

// IntersectsAABB reports whether the box is at least partially inside the
// frustum. It may report boxes near frustum corners as intersecting.
func (f Frustum) IntersectsAABB(b AABB) bool {
	for _, p := range f {
		// farthest corner along the plane normal:
		positive := b.Min
		if p.Normal.X() >= 0 {
			positive[0] = b.Max.X()
		}
		if p.Normal.Y() >= 0 {
			positive[1] = b.Max.Y()
		}
		if p.Normal.Z() >= 0 {
			positive[2] = b.Max.Z()
		}

		if p.SignedDistance(positive) < 0 {
			return false
		}
	}
	return true
}
