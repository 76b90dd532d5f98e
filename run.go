package lookdev

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Pipeline translates one host scene into a target-application bundle:
// baked material textures, mapped lights and exported geometry under a
// manifest-sealed project root.
type Pipeline struct {
	adapter     SceneAdapter
	backend     RenderBackend
	exporter    GeometryExporter
	snapshotter SceneSnapshotter
	schema      *TargetSchema
	cache       *MaterialCache
	opts        Options
	specs       map[Channel]ChannelSpec
	log         Logger

	// renderMu serializes every render backend interaction, bake
	// scaffolding mutations included.
	renderMu sync.Mutex
}

type PipelineBuilder struct {
	adapter     SceneAdapter
	backend     RenderBackend
	exporter    GeometryExporter
	snapshotter SceneSnapshotter
	schema      *TargetSchema
	opts        Options
	log         Logger
}

func NewPipelineBuilder(adapter SceneAdapter, backend RenderBackend) *PipelineBuilder {
	return &PipelineBuilder{
		adapter: adapter,
		backend: backend,
		opts:    DefaultOptions(),
	}
}

func (b *PipelineBuilder) UseOptions(opts Options) *PipelineBuilder {
	b.opts = opts
	return b
}

func (b *PipelineBuilder) UseLogger(log Logger) *PipelineBuilder {
	b.log = log
	return b
}

func (b *PipelineBuilder) UseGeometryExporter(e GeometryExporter) *PipelineBuilder {
	b.exporter = e
	return b
}

func (b *PipelineBuilder) UseSnapshotter(s SceneSnapshotter) *PipelineBuilder {
	b.snapshotter = s
	return b
}

func (b *PipelineBuilder) UseTargetSchema(s *TargetSchema) *PipelineBuilder {
	b.schema = s
	return b
}

// Build validates the configuration and assembles the pipeline. A cache
// directory that cannot be opened degrades to an uncached pipeline with a
// warning rather than failing the build.
func (b *PipelineBuilder) Build() (*Pipeline, error) {
	if b.adapter == nil {
		return nil, errors.New("pipeline: scene adapter is required")
	}
	if b.backend == nil {
		return nil, errors.New("pipeline: render backend is required")
	}
	if err := b.opts.validate(); err != nil {
		return nil, err
	}
	log := b.log
	if log == nil {
		log = NewDefaultLogger("lookdev", false)
	}
	schema := b.schema
	if schema == nil {
		schema = DefaultTargetSchema()
	}

	var cache *MaterialCache
	if b.opts.CacheDir != "" {
		var err error
		cache, err = OpenCache(b.opts.CacheDir)
		if err != nil {
			log.Warnf("bake cache unavailable, baking everything: %v", err)
			cache = nil
		}
	}

	return &Pipeline{
		adapter:     b.adapter,
		backend:     b.backend,
		exporter:    b.exporter,
		snapshotter: b.snapshotter,
		schema:      schema,
		cache:       cache,
		opts:        b.opts,
		specs:       buildChannelSpecs(b.opts),
		log:         log,
	}, nil
}

// Close releases the pipeline's cache handle.
func (p *Pipeline) Close() error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Close()
}

// MaterialChannels reports which channels a material would bake, without
// touching the renderer.
func (p *Pipeline) MaterialChannels(id MaterialID) ([]Channel, error) {
	graph, err := p.adapter.MaterialGraph(id)
	if err != nil {
		return nil, sceneErr("read material graph", id, err)
	}
	return AnalyzeGraph(graph).Channels, nil
}

type materialEntry struct {
	mat    Material
	meshes []MeshID
}

// Run translates the scene. Materials process concurrently up to
// Options.Workers, bakes serialize on the render backend. Per-material
// failures are recorded and the run continues; cancellation lets in-flight
// bakes finish, marks the rest cancelled and leaves the bundle unsealed.
// The returned report is complete even for partial runs.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString()}
	started := time.Now()
	p.log.Infof("run %s: translating scene into %s", report.RunID, p.opts.ProjectRoot)

	var hits0, misses0 int64
	if p.cache != nil {
		hits0, misses0 = p.cache.Stats()
	}

	meshes, err := p.adapter.Meshes()
	if err != nil {
		return report, sceneErr("list meshes", "", err)
	}
	if p.opts.Geometry.VisibleOnly {
		visible := make([]Mesh, 0, len(meshes))
		for _, m := range meshes {
			if m.Visible {
				visible = append(visible, m)
			}
		}
		meshes = visible
	}

	lights, err := p.adapter.Lights()
	if err != nil {
		return report, sceneErr("list lights", "", err)
	}

	var (
		order    []MaterialID
		entries  = map[MaterialID]*materialEntry{}
		meshMats = map[MeshID][]MaterialID{}
	)
	for _, mesh := range meshes {
		mats, err := p.adapter.MeshMaterials(mesh.ID)
		if err != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("mesh %s: reading materials: %v", mesh.ID, err))
			continue
		}
		for _, mat := range mats {
			meshMats[mesh.ID] = append(meshMats[mesh.ID], mat.ID)
			if e, ok := entries[mat.ID]; ok {
				e.meshes = append(e.meshes, mesh.ID)
				continue
			}
			entries[mat.ID] = &materialEntry{mat: mat, meshes: []MeshID{mesh.ID}}
			order = append(order, mat.ID)
		}
	}
	for _, id := range order {
		if e := entries[id]; len(e.meshes) > 1 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("material %s is used by %d meshes; baked once and shared", id, len(e.meshes)))
		}
	}

	bundler, err := BeginBundle(p.opts.ProjectRoot, p.log)
	if err != nil {
		return report, err
	}

	if p.snapshotter != nil {
		dir := bundler.SnapshotDir()
		name := ""
		err := os.MkdirAll(dir, 0o755)
		if err == nil {
			name, err = p.snapshotter.SaveSnapshot(dir)
		}
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("scene snapshot failed: %v", err))
		} else {
			bundler.SetSceneSnapshot(path.Join(snapshotDirName, name))
		}
	}

	for _, l := range lights {
		target, rep := MapLight(l, p.schema)
		if err := bundler.AddLight(target, rep); err != nil {
			return report, err
		}
		report.Lights = append(report.Lights, LightResult{
			ID:         l.ID,
			Name:       l.Name,
			TargetKind: target.Kind,
			Report:     rep,
		})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for _, id := range order {
		entry := entries[id]
		g.Go(func() error {
			mres := p.processMaterial(gctx, entry, bundler)
			mu.Lock()
			report.Materials = append(report.Materials, mres)
			for _, w := range mres.warnings() {
				report.Warnings = append(report.Warnings, w)
			}
			mu.Unlock()
			return nil
		})
	}

	if p.exporter == nil {
		if len(meshes) > 0 {
			report.Warnings = append(report.Warnings, "no geometry exporter configured; geometry manifest will be empty")
		}
	} else {
		for _, mesh := range meshes {
			mesh := mesh
			g.Go(func() error {
				gres := GeometryResult{Mesh: mesh.ID, Name: mesh.Name}
				name, err := p.exporter.ExportMesh(gctx, mesh, bundler.GeometryDir(), p.opts.Geometry)
				if err != nil {
					gres.Err = err.Error()
					p.log.Errorf("export mesh %s: %v", mesh.ID, err)
				} else {
					gres.Path = path.Join(geometryDirName, name)
					if err := bundler.AddGeometry(mesh.ID, mesh.Name, gres.Path, meshMats[mesh.ID]); err != nil {
						gres.Err = err.Error()
					}
				}
				mu.Lock()
				report.Geometry = append(report.Geometry, gres)
				mu.Unlock()
				return nil
			})
		}
	}

	// Workers record their own failures in the report and never return
	// errors, so Wait only synchronizes.
	_ = g.Wait()

	if p.cache != nil {
		hits, misses := p.cache.Stats()
		report.CacheHits = hits - hits0
		report.CacheMisses = misses - misses0
	}
	for _, m := range report.Materials {
		for _, ch := range m.Channels {
			if ch.Path != "" {
				report.TexturesWritten++
			}
		}
	}
	report.sortResults()

	if ctx.Err() != nil {
		report.Cancelled = true
		p.log.Warnf("run %s cancelled after %s; bundle left unsealed", report.RunID, time.Since(started).Round(time.Millisecond))
		return report, ctx.Err()
	}

	summary, err := bundler.Finalize()
	if err != nil {
		return report, err
	}
	report.Bundle = summary

	byStatus := report.MaterialsByStatus()
	p.log.Infof("run %s done in %s: %d baked, %d cached, %d skipped, %d failed, %d lights, %d meshes",
		report.RunID, time.Since(started).Round(time.Millisecond),
		byStatus[StatusBaked], byStatus[StatusCached], byStatus[StatusSkipped], byStatus[StatusFailed],
		len(report.Lights), len(report.Geometry))
	return report, nil
}

// processMaterial bakes every required channel of one material and, only
// when all of them came through, registers the material with the bundler.
// Partially baked materials never reach a manifest.
func (p *Pipeline) processMaterial(ctx context.Context, entry *materialEntry, bundler *Bundler) MaterialResult {
	res := MaterialResult{ID: entry.mat.ID, Name: entry.mat.Name, Meshes: entry.meshes}

	if !entry.mat.Bakeable {
		res.Status = StatusSkipped
		res.Reason = "not a node-based material"
		return res
	}

	graph, err := p.adapter.MaterialGraph(entry.mat.ID)
	if err != nil {
		res.Status = StatusFailed
		res.Reason = sceneErr("read material graph", entry.mat.ID, err).Error()
		return res
	}
	job := &bakeJob{
		material: entry.mat,
		meshes:   entry.meshes,
		graph:    graph,
		analysis: AnalyzeGraph(graph),
	}
	job.hash = StructuralHash(graph)
	job.chSet = channelSetFingerprint(job.analysis.Channels)
	res.Hash = job.hash
	res.Unsupported = job.analysis.Unsupported

	if len(job.analysis.Channels) == 0 {
		res.Status = StatusSkipped
		res.Reason = "no bakeable inputs"
		return res
	}

	deadline := time.Time{}
	if p.opts.MaterialTimeout > 0 {
		deadline = time.Now().Add(time.Duration(p.opts.MaterialTimeout))
	}

	refs := make(map[Channel]TextureRef)
	for _, ch := range job.analysis.Channels {
		if ctx.Err() != nil {
			res.Channels = append(res.Channels, ChannelResult{Channel: ch, Status: StatusCancelled})
			continue
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			res.Channels = append(res.Channels, ChannelResult{
				Channel: ch,
				Status:  StatusFailed,
				Err:     fmt.Sprintf("material timeout %s exceeded", time.Duration(p.opts.MaterialTimeout)),
			})
			continue
		}
		cres, ref := p.processChannel(ctx, job, p.specs[ch], bundler)
		res.Channels = append(res.Channels, cres)
		if cres.Status == StatusBaked || cres.Status == StatusCached {
			refs[ch] = ref
		}
	}

	res.Status = rollupMaterial(res.Channels)
	if res.Status == StatusFailed {
		res.Reason = "channel bake failed"
		return res
	}
	if res.Status == StatusCancelled {
		return res
	}

	constants, mapRep := MapMaterialConstants(job.analysis.Constants, p.schema)
	if err := bundler.AddMaterial(entry.mat.ID, entry.mat.Name, job.hash, refs, constants, mapRep); err != nil {
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}
	return res
}
