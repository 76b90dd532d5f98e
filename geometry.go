package lookdev

import "context"

// GeometryExportOptions mirror the FBX exporter switches the pipeline
// fixes for lookdev transfers.
type GeometryExportOptions struct {
	AxisForward    string  `toml:"axis_forward"`
	AxisUp         string  `toml:"axis_up"`
	GlobalScale    float64 `toml:"global_scale"`
	ApplyModifiers bool    `toml:"apply_modifiers"`
	ApplyUnitScale bool    `toml:"apply_unit_scale"`
	SmoothType     string  `toml:"smooth_type"`
	BakeAnimation  bool    `toml:"bake_animation"`
	EmbedTextures  bool    `toml:"embed_textures"`
	VisibleOnly    bool    `toml:"visible_only"`
}

func DefaultGeometryExportOptions() GeometryExportOptions {
	return GeometryExportOptions{
		AxisForward:    "-Z",
		AxisUp:         "Y",
		GlobalScale:    1.0,
		ApplyModifiers: true,
		ApplyUnitScale: true,
		SmoothType:     "OFF",
		BakeAnimation:  false,
		EmbedTextures:  true,
		VisibleOnly:    true,
	}
}

// GeometryExporter writes one mesh into destDir and returns the created
// file's name. Implementations drive the host exporter, which may spawn
// an external process, so they take a context.
type GeometryExporter interface {
	ExportMesh(ctx context.Context, mesh Mesh, destDir string, opts GeometryExportOptions) (string, error)
}

// SceneSnapshotter saves a full copy of the source scene next to the
// bundle, for provenance. Optional.
type SceneSnapshotter interface {
	SaveSnapshot(destDir string) (string, error)
}
