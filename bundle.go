package lookdev

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
)

// Manifest schema identifiers, bumped on breaking layout changes.
const (
	SchemaMaterials = "lookdev.materials/v1"
	SchemaLights    = "lookdev.lights/v1"
	SchemaGeometry  = "lookdev.geometry/v1"
)

const (
	materialsManifestName = "materials.manifest"
	lightsManifestName    = "lights.manifest"
	geometryManifestName  = "geometry.manifest"

	materialsDirName = "materials"
	geometryDirName  = "geometry"
	snapshotDirName  = "scene_export"
)

// TextureRef points at one texture inside a bundle. Path is relative to
// the bundle root, with forward slashes.
type TextureRef struct {
	Path        string      `json:"path"`
	ColorSpace  ColorSpace  `json:"color_space"`
	Resolution  int         `json:"resolution"`
	Format      ImageFormat `json:"format"`
	NormalSpace string      `json:"normal_space,omitempty"`
}

type materialRecord struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	GraphHash string                `json:"graph_hash"`
	Channels  map[string]TextureRef `json:"channels"`
	Constants map[string]AttrValue  `json:"constants,omitempty"`
	Mapping   []ReportEntry         `json:"mapping,omitempty"`
}

type lightRecord struct {
	ID      string               `json:"id"`
	Name    string               `json:"name"`
	Kind    string               `json:"kind"`
	Attrs   map[string]AttrValue `json:"attrs,omitempty"`
	Mapping []ReportEntry        `json:"mapping"`
}

type geometryRecord struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Materials []string `json:"materials,omitempty"`
}

type materialsManifest struct {
	Schema    string           `json:"schema"`
	Materials []materialRecord `json:"materials"`
}

type lightsManifest struct {
	Schema string        `json:"schema"`
	Lights []lightRecord `json:"lights"`
}

type geometryManifest struct {
	Schema      string           `json:"schema"`
	SourceScene string           `json:"source_scene,omitempty"`
	Meshes      []geometryRecord `json:"meshes"`
}

// BundleSummary describes a sealed bundle.
type BundleSummary struct {
	Root      string    `json:"root"`
	Materials int       `json:"materials"`
	Lights    int       `json:"lights"`
	Meshes    int       `json:"meshes"`
	Textures  int       `json:"textures"`
	Manifests [3]string `json:"manifests"`
}

// Bundler assembles one bundle under a root directory and seals it with
// three manifests. Content registration and texture writes may happen
// concurrently; Finalize validates that every referenced artifact exists
// before any manifest is written, so a bundle is either fully described
// or has no manifests at all.
type Bundler struct {
	root string
	log  Logger

	mu        sync.Mutex
	materials map[MaterialID]materialRecord
	lights    []lightRecord
	meshes    []geometryRecord
	snapshot  string
	finalized bool
}

// BeginBundle creates the bundle directory skeleton under root.
func BeginBundle(root string, log Logger) (*Bundler, error) {
	if log == nil {
		log = NewNopLogger()
	}
	for _, dir := range []string{root, filepath.Join(root, materialsDirName), filepath.Join(root, geometryDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("bundle: create %s: %w", dir, err)
		}
	}
	return &Bundler{
		root:      root,
		log:       log,
		materials: make(map[MaterialID]materialRecord),
	}, nil
}

func (b *Bundler) Root() string { return b.root }

// GeometryDir is where geometry exporters place their files.
func (b *Bundler) GeometryDir() string { return filepath.Join(b.root, geometryDirName) }

// SnapshotDir is where scene snapshots are saved.
func (b *Bundler) SnapshotDir() string { return filepath.Join(b.root, snapshotDirName) }

func texturePath(mat MaterialID, ch Channel, format ImageFormat) string {
	return path.Join(materialsDirName, string(mat), fmt.Sprintf("%s.%s", ch, format.Ext()))
}

// WriteTexture stores encoded texture bytes under the bundle layout and
// returns a reference for manifest registration. The write goes through a
// temp file and rename.
func (b *Bundler) WriteTexture(mat MaterialID, ch Channel, spec ChannelSpec, format ImageFormat, data []byte) (TextureRef, error) {
	rel := texturePath(mat, ch, format)
	abs := filepath.Join(b.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return TextureRef{}, fmt.Errorf("bundle: create material dir: %w", err)
	}
	if err := writeFileAtomic(abs, data); err != nil {
		return TextureRef{}, fmt.Errorf("bundle: write texture %s: %w", rel, err)
	}
	b.log.Debugf("bundle: wrote %s (%d bytes)", rel, len(data))
	return TextureRef{
		Path:        rel,
		ColorSpace:  spec.ColorSpace,
		Resolution:  spec.Resolution,
		Format:      format,
		NormalSpace: spec.NormalSpace,
	}, nil
}

// AdoptTexture copies an already-encoded bake (usually a cache blob) into
// the bundle layout.
func (b *Bundler) AdoptTexture(mat MaterialID, ch Channel, spec ChannelSpec, tex *BakedTexture) (TextureRef, error) {
	data, err := os.ReadFile(tex.BlobPath)
	if err != nil {
		return TextureRef{}, fmt.Errorf("bundle: read blob for %s/%s: %w", mat, ch, err)
	}
	return b.WriteTexture(mat, ch, spec, tex.Format, data)
}

// AddMaterial registers a fully baked material. Callers must only add
// materials whose every channel texture is already written.
func (b *Bundler) AddMaterial(id MaterialID, name, graphHash string, channels map[Channel]TextureRef, constants map[string]AttrValue, mapping MappingReport) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return fmt.Errorf("bundle: already finalized")
	}
	if _, ok := b.materials[id]; ok {
		return fmt.Errorf("bundle: material %s already added", id)
	}
	chans := make(map[string]TextureRef, len(channels))
	for ch, ref := range channels {
		chans[string(ch)] = ref
	}
	b.materials[id] = materialRecord{
		ID:        string(id),
		Name:      name,
		GraphHash: graphHash,
		Channels:  chans,
		Constants: constants,
		Mapping:   mapping.Entries,
	}
	return nil
}

func (b *Bundler) AddLight(l TargetLight, mapping MappingReport) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return fmt.Errorf("bundle: already finalized")
	}
	b.lights = append(b.lights, lightRecord{
		ID:      string(l.ID),
		Name:    l.Name,
		Kind:    l.Kind,
		Attrs:   l.Attrs,
		Mapping: mapping.Entries,
	})
	return nil
}

// AddGeometry registers one exported mesh file. relPath is relative to
// the bundle root with forward slashes.
func (b *Bundler) AddGeometry(id MeshID, name, relPath string, materials []MaterialID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return fmt.Errorf("bundle: already finalized")
	}
	mats := make([]string, len(materials))
	for i, m := range materials {
		mats[i] = string(m)
	}
	b.meshes = append(b.meshes, geometryRecord{
		ID:        string(id),
		Name:      name,
		Path:      relPath,
		Materials: mats,
	})
	return nil
}

// SetSceneSnapshot records the saved source scene copy, relative to the
// bundle root.
func (b *Bundler) SetSceneSnapshot(relPath string) {
	b.mu.Lock()
	b.snapshot = relPath
	b.mu.Unlock()
}

// Finalize validates every registered artifact and then writes the three
// manifests. On any validation failure it returns BundleFinalizeError and
// writes nothing, leaving the bundle without manifests.
func (b *Bundler) Finalize() (*BundleSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return nil, fmt.Errorf("bundle: already finalized")
	}

	matList := make([]materialRecord, 0, len(b.materials))
	for _, rec := range b.materials {
		matList = append(matList, rec)
	}
	sort.Slice(matList, func(i, j int) bool { return matList[i].ID < matList[j].ID })

	lightList := make([]lightRecord, 0, len(b.lights))
	lightList = append(lightList, b.lights...)
	sort.Slice(lightList, func(i, j int) bool { return lightList[i].ID < lightList[j].ID })

	meshList := make([]geometryRecord, 0, len(b.meshes))
	meshList = append(meshList, b.meshes...)
	sort.Slice(meshList, func(i, j int) bool { return meshList[i].ID < meshList[j].ID })

	var missing []string
	textures := 0
	for _, rec := range matList {
		for _, ref := range rec.Channels {
			textures++
			if !b.artifactExists(ref.Path) {
				missing = append(missing, ref.Path)
			}
		}
	}
	for _, rec := range meshList {
		if !b.artifactExists(rec.Path) {
			missing = append(missing, rec.Path)
		}
	}
	if b.snapshot != "" && !b.artifactExists(b.snapshot) {
		missing = append(missing, b.snapshot)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &BundleFinalizeError{Missing: missing}
	}

	manifests := []struct {
		name string
		doc  any
	}{
		{materialsManifestName, materialsManifest{Schema: SchemaMaterials, Materials: matList}},
		{lightsManifestName, lightsManifest{Schema: SchemaLights, Lights: lightList}},
		{geometryManifestName, geometryManifest{Schema: SchemaGeometry, SourceScene: b.snapshot, Meshes: meshList}},
	}

	encoded := make([][]byte, len(manifests))
	for i, m := range manifests {
		data, err := json.MarshalIndent(m.doc, "", "  ")
		if err != nil {
			return nil, &BundleFinalizeError{Err: err}
		}
		encoded[i] = append(data, '\n')
	}

	var written []string
	for i, m := range manifests {
		dst := filepath.Join(b.root, m.name)
		if err := writeFileAtomic(dst, encoded[i]); err != nil {
			for _, w := range written {
				os.Remove(w)
			}
			return nil, &BundleFinalizeError{Err: err}
		}
		written = append(written, dst)
	}

	b.finalized = true
	b.log.Infof("bundle sealed: %d materials, %d lights, %d meshes, %d textures",
		len(matList), len(lightList), len(meshList), textures)
	return &BundleSummary{
		Root:      b.root,
		Materials: len(matList),
		Lights:    len(lightList),
		Meshes:    len(meshList),
		Textures:  textures,
		Manifests: [3]string{materialsManifestName, lightsManifestName, geometryManifestName},
	}, nil
}

func (b *Bundler) artifactExists(rel string) bool {
	info, err := os.Stat(filepath.Join(b.root, filepath.FromSlash(rel)))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
