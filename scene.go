package lookdev

type (
	MeshID     string
	MaterialID string
	LightID    string
)

// Mesh is one bakeable mesh object in the host scene.
type Mesh struct {
	ID      MeshID
	Name    string
	Visible bool
}

// Material identifies one host material. Bakeable is false for materials
// without a node graph; those are skipped, never failed.
type Material struct {
	ID       MaterialID
	Name     string
	Bakeable bool
}

// BakeImageSpec describes the temporary image a bake target renders into.
// Width and height already include supersampling.
type BakeImageSpec struct {
	NodeName   string
	Width      int
	Height     int
	ColorSpace ColorSpace
}

// BakeTarget is an opaque handle to a temporary image node inserted into a
// material graph for the duration of one bake. InsertBakeTarget marks the
// node as the active bake node; RemoveBakeTarget removes it and restores
// the graph's node selection state. The orchestrator guarantees removal
// even when the bake fails.
type BakeTarget interface {
	Material() MaterialID
	Node() string
}

// SceneAdapter is the host application boundary. Implementations read and
// mutate the live scene; everything above this interface is host-agnostic.
//
// Graph reads return snapshots. Mutations are limited to the bake
// scaffolding the orchestrator tears down again: temporary image nodes
// and mesh selection. MeshMaterials skips empty material slots.
// Implementations wrap host failures in SceneAccessError.
type SceneAdapter interface {
	Meshes() ([]Mesh, error)
	MeshMaterials(id MeshID) ([]Material, error)
	Lights() ([]SourceLight, error)
	MaterialGraph(id MaterialID) (*ShaderGraph, error)

	InsertBakeTarget(id MaterialID, img BakeImageSpec) (BakeTarget, error)
	RemoveBakeTarget(t BakeTarget) error

	SelectMeshes(ids []MeshID) error
	ClearSelection() error
}
