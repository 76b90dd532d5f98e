package lookdev

type Device string

const (
	DeviceGPU Device = "GPU"
	DeviceCPU Device = "CPU"
)

const RenderEngineCycles = "CYCLES"

// RenderSettings is the slice of renderer state the pipeline touches for
// baking. ApplySettings returns the previous values so the orchestrator
// can restore them afterwards.
type RenderSettings struct {
	Engine  string
	Device  Device
	Samples int
}

// BakeRequest parameterizes one bake invocation. The render target and
// the meshes to bake are host state: the orchestrator inserts the bake
// target and selects meshes through the SceneAdapter before calling Bake.
type BakeRequest struct {
	Mode   BakeMode
	Filter []PassFilter
	Margin int
}

// RenderBackend drives the host renderer. Implementations are not safe
// for concurrent use; the orchestrator serializes all access. A bake
// cannot be interrupted mid-call, so Bake takes no context. Bake failures
// (missing UVs included) come back as plain errors and are wrapped into
// BakeError by the caller.
type RenderBackend interface {
	ApplySettings(s RenderSettings) (RenderSettings, error)
	Bake(req BakeRequest) (*PixelBuffer, error)
}
