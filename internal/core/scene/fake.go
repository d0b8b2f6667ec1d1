package scene

import (
	"errors"
	"sync"

	"github.com/globekit/globekit/internal/core/geo"
)

// ErrPrimitiveNotFound is returned by FakeProvider for operations on unknown
// primitive IDs.
var ErrPrimitiveNotFound = errors.New("primitive not found")

// FakeProvider is an in-memory Provider used by tests and the headless demo.
// It records every call and can be told to fail operations on specific IDs.
type FakeProvider struct {
	mu sync.Mutex

	camera     Camera
	primitives map[string]Primitive
	effects    map[Effect]bool

	failOn map[string]error

	Adds    int
	Updates int
	Removes int
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		primitives: make(map[string]Primitive),
		effects:    make(map[Effect]bool),
		failOn:     make(map[string]error),
	}
}

// SetCamera replaces the camera state returned by Camera.
func (f *FakeProvider) SetCamera(cam Camera) {
	f.mu.Lock()
	f.camera = cam
	f.mu.Unlock()
}

// LookAt positions a perspective camera at pos facing target.
func (f *FakeProvider) LookAt(pos, target geo.Vec3, fovY, aspect, near, far float64) {
	dir := target.Sub(pos).Normalize()
	up := geo.Vec3{Z: 1}
	if dir.Cross(up).Length() == 0 {
		up = geo.Vec3{Y: 1}
	}
	f.SetCamera(Camera{
		Position:  pos,
		Direction: dir,
		Up:        up,
		Frustum:   geo.PerspectiveFrustum(pos, dir, up, fovY, aspect, near, far),
	})
}

// FailOn makes all subsequent operations on id return err. Passing a nil err
// clears the failure.
func (f *FakeProvider) FailOn(id string, err error) {
	f.mu.Lock()
	if err == nil {
		delete(f.failOn, id)
	} else {
		f.failOn[id] = err
	}
	f.mu.Unlock()
}

func (f *FakeProvider) AddPrimitive(p Primitive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[p.ID]; ok {
		return err
	}
	f.primitives[p.ID] = p
	f.Adds++
	return nil
}

func (f *FakeProvider) UpdatePrimitive(id string, p Primitive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[id]; ok {
		return err
	}
	if _, ok := f.primitives[id]; !ok {
		return ErrPrimitiveNotFound
	}
	f.primitives[id] = p
	f.Updates++
	return nil
}

func (f *FakeProvider) RemovePrimitive(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[id]; ok {
		return err
	}
	if _, ok := f.primitives[id]; !ok {
		return ErrPrimitiveNotFound
	}
	delete(f.primitives, id)
	f.Removes++
	return nil
}

func (f *FakeProvider) Camera() Camera {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.camera
}

func (f *FakeProvider) SetEffect(effect Effect, enabled bool) {
	f.mu.Lock()
	f.effects[effect] = enabled
	f.mu.Unlock()
}

// Primitive returns the stored primitive for id.
func (f *FakeProvider) Primitive(id string) (Primitive, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.primitives[id]
	return p, ok
}

// PrimitiveCount returns the number of primitives currently in the scene.
func (f *FakeProvider) PrimitiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.primitives)
}

// EffectEnabled reports the last state set for effect.
func (f *FakeProvider) EffectEnabled(effect Effect) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.effects[effect]
}
