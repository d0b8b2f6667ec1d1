package geo

import "math"

// Containment classifies a volume against a frustum.
type Containment int

const (
	Outside Containment = iota
	Intersects
	Inside
)

// Plane is a signed half-space: points p with Normal·p + Offset >= 0 lie on
// the visible side.
type Plane struct {
	Normal Vec3
	Offset float64
}

// PlaneFrom builds a plane from a (not necessarily unit) normal and a point
// on the plane.
func PlaneFrom(normal, point Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, Offset: -n.Dot(point)}
}

// SignedDistance returns the distance of p from the plane, negative on the
// non-visible side.
func (pl Plane) SignedDistance(p Vec3) float64 {
	return pl.Normal.Dot(p) + pl.Offset
}

// Frustum is the six bounding planes of a camera volume, all normals
// pointing inward.
type Frustum [6]Plane

// ContainsSphere classifies s against the frustum. A sphere touching any
// plane reports Intersects, which callers treat as visible.
func (f Frustum) ContainsSphere(s BoundingSphere) Containment {
	result := Inside
	for _, pl := range f {
		d := pl.SignedDistance(s.Center)
		if d < -s.Radius {
			return Outside
		}
		if d < s.Radius {
			result = Intersects
		}
	}
	return result
}

// PerspectiveFrustum derives the six planes of a perspective camera.
// fovY is the vertical field of view in radians, aspect is width/height.
func PerspectiveFrustum(position, direction, up Vec3, fovY, aspect, near, far float64) Frustum {
	forward := direction.Normalize()
	right := forward.Cross(up).Normalize()
	top := right.Cross(forward)

	halfV := far * math.Tan(fovY/2)
	halfH := halfV * aspect
	frontFar := forward.Scale(far)

	return Frustum{
		PlaneFrom(forward, position.Add(forward.Scale(near))),
		PlaneFrom(forward.Scale(-1), position.Add(frontFar)),
		PlaneFrom(top.Cross(frontFar.Add(right.Scale(halfH))), position),
		PlaneFrom(frontFar.Sub(right.Scale(halfH)).Cross(top), position),
		PlaneFrom(right.Cross(frontFar.Sub(top.Scale(halfV))), position),
		PlaneFrom(frontFar.Add(top.Scale(halfV)).Cross(right), position),
	}
}
