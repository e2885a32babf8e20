package engine

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is a rigid transform in world space.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

func PoseAt(p mgl64.Vec3) Pose {
	return Pose{Position: p, Orientation: mgl64.QuatIdent()}
}

// BodyHandle identifies a body inside the scene that created it. Zero is never
// handed out.
type BodyHandle uint64

func (h BodyHandle) Valid() bool { return h != 0 }

func (h BodyHandle) String() string { return fmt.Sprintf("body#%d", uint64(h)) }

// BoxGeometry is a cuboid centered on the body origin.
type BoxGeometry struct {
	HalfExtents mgl64.Vec3
}

type BodyDesc struct {
	Geometry BoxGeometry
	Pose     Pose
	Mass     float64
	Material Material
}

type MaterialDesc struct {
	StaticFriction  float64
	DynamicFriction float64
	Restitution     float64
}

// Tolerances sets the length and speed scale the engine tunes itself for.
type Tolerances struct {
	Length float64
	Speed  float64
}

func DefaultTolerances() Tolerances {
	return Tolerances{Length: 1, Speed: 10}
}

type SceneDesc struct {
	Gravity    mgl64.Vec3
	Dispatcher Dispatcher
	// GPU is nil when the scene runs on the CPU only.
	GPU GPUContext
}

type Releaser interface {
	Release() error
}

type ErrorCode int

const (
	ErrorDebugInfo ErrorCode = iota
	ErrorDebugWarning
	ErrorInvalidParameter
	ErrorInvalidOperation
	ErrorOutOfMemory
	ErrorInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorDebugInfo:
		return "debug_info"
	case ErrorDebugWarning:
		return "debug_warning"
	case ErrorInvalidParameter:
		return "invalid_parameter"
	case ErrorInvalidOperation:
		return "invalid_operation"
	case ErrorOutOfMemory:
		return "out_of_memory"
	case ErrorInternal:
		return "internal"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// ErrorReporter receives diagnostics raised inside the engine.
type ErrorReporter interface {
	ReportError(code ErrorCode, message, file string, line int)
}

type Physics interface {
	CreateFoundation(reporter ErrorReporter) (Foundation, error)
}

type Foundation interface {
	Releaser
	CreateWorld(tol Tolerances) (World, error)
}

type World interface {
	Releaser
	CreateGPUContext() (GPUContext, error)
	CreateDispatcher(workers int) (Dispatcher, error)
	CreateScene(desc SceneDesc) (Scene, error)
	CreateMaterial(desc MaterialDesc) (Material, error)
}

// GPUContext is an accelerated execution path. A context that exists but is
// not Valid must still be released.
type GPUContext interface {
	Releaser
	Name() string
	Valid() bool
}

type Dispatcher interface {
	Releaser
	Workers() int
}

type Material interface {
	Releaser
	Desc() MaterialDesc
}

type Actor interface {
	Releaser
}

// Scene owns the simulated bodies. Simulate and FetchResults come in pairs;
// the scene must not be mutated between them.
type Scene interface {
	Releaser
	AddGroundPlane(material Material) (Actor, error)
	CreateBody(desc BodyDesc) (BodyHandle, error)
	DestroyBody(h BodyHandle) error
	SetGravity(g mgl64.Vec3)
	Gravity() mgl64.Vec3
	Simulate(dt float64) error
	// FetchResults reports whether results were available. With block set it
	// waits for the step started by Simulate.
	FetchResults(block bool) (bool, error)
	Pose(h BodyHandle) (Pose, error)
}
