package lookdev

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// bakeNodePrefix names temporary image nodes, so a stray node is
// recognizable in the host scene if removal ever fails hard.
const bakeNodePrefix = "lookdev_bake_"

// bakeJob carries everything needed to bake all channels of one material.
type bakeJob struct {
	material Material
	meshes   []MeshID
	graph    *ShaderGraph
	analysis GraphAnalysis
	hash     string
	chSet    string
}

// withBakeTarget inserts a temporary image node into the material, runs
// fn, then removes the node again even when fn fails or panics. The
// scene graph is back in its original shape when this returns.
func withBakeTarget(ad SceneAdapter, id MaterialID, img BakeImageSpec, fn func(BakeTarget) error) (err error) {
	target, err := ad.InsertBakeTarget(id, img)
	if err != nil {
		return sceneErr("insert bake target", id, err)
	}
	defer func() {
		if rerr := ad.RemoveBakeTarget(target); rerr != nil && err == nil {
			err = sceneErr("remove bake target", id, rerr)
		}
	}()
	return fn(target)
}

// bakeChannel runs one bake with exclusive renderer access. Render
// settings, mesh selection and the temporary bake node are all restored
// before the lock is released, so everything the host renderer sees is
// serialized here.
func (p *Pipeline) bakeChannel(ctx context.Context, job *bakeJob, spec ChannelSpec) (*PixelBuffer, error) {
	p.renderMu.Lock()
	defer p.renderMu.Unlock()

	// A bake waiting on the lock when the run is cancelled never starts.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := BakeImageSpec{
		NodeName:   bakeNodePrefix + uuid.NewString(),
		Width:      spec.Resolution * spec.Supersample,
		Height:     spec.Resolution * spec.Supersample,
		ColorSpace: spec.ColorSpace,
	}

	var buf *PixelBuffer
	err := withBakeTarget(p.adapter, job.material.ID, img, func(BakeTarget) error {
		prev, err := p.backend.ApplySettings(RenderSettings{
			Engine:  RenderEngineCycles,
			Device:  p.opts.Device,
			Samples: spec.Samples,
		})
		if err != nil {
			return &BakeError{Material: job.material.ID, Channel: spec.Channel, Err: err}
		}
		defer func() {
			if _, rerr := p.backend.ApplySettings(prev); rerr != nil {
				p.log.Warnf("restore render settings after %s/%s: %v", job.material.ID, spec.Channel, rerr)
			}
		}()

		if err := p.adapter.SelectMeshes(job.meshes); err != nil {
			return sceneErr("select meshes", job.material.ID, err)
		}
		defer func() {
			if cerr := p.adapter.ClearSelection(); cerr != nil {
				p.log.Warnf("clear selection after %s/%s: %v", job.material.ID, spec.Channel, cerr)
			}
		}()

		out, err := p.backend.Bake(BakeRequest{
			Mode:   spec.Mode,
			Filter: spec.Filter,
			Margin: spec.Margin,
		})
		if err != nil {
			return &BakeError{Material: job.material.ID, Channel: spec.Channel, Err: err}
		}
		if out == nil {
			return &BakeError{Material: job.material.ID, Channel: spec.Channel, Err: errors.New("backend returned no pixels")}
		}
		if out.Width != img.Width || out.Height != img.Height {
			return &BakeError{
				Material: job.material.ID,
				Channel:  spec.Channel,
				Err:      fmt.Errorf("backend returned %dx%d, want %dx%d", out.Width, out.Height, img.Width, img.Height),
			}
		}
		buf = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// processChannel produces one channel texture: cache hit or bake, then
// post-processing, encoding and the bundle write. Cache trouble is logged
// and degrades to baking, never failing the channel by itself.
func (p *Pipeline) processChannel(ctx context.Context, job *bakeJob, spec ChannelSpec, bundler *Bundler) (ChannelResult, TextureRef) {
	res := ChannelResult{Channel: spec.Channel}
	key := CacheKey{
		Material:   job.material.ID,
		GraphHash:  job.hash,
		ChannelSet: job.chSet,
		Channel:    spec.Channel,
		Resolution: spec.Resolution,
	}

	if p.cache != nil {
		tex, ok, err := p.cache.Lookup(key)
		if err != nil {
			p.log.Warnf("cache lookup for %s/%s: %v", job.material.ID, spec.Channel, err)
		}
		if ok {
			ref, err := bundler.AdoptTexture(job.material.ID, spec.Channel, spec, tex)
			if err == nil {
				p.log.Debugf("cache hit %s/%s", job.material.ID, spec.Channel)
				res.Status = StatusCached
				res.Path = ref.Path
				return res, ref
			}
			p.log.Warnf("adopt cached texture for %s/%s, rebaking: %v", job.material.ID, spec.Channel, err)
		}
	}

	buf, err := p.bakeChannel(ctx, job, spec)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Status = StatusCancelled
			return res, TextureRef{}
		}
		res.Status = StatusFailed
		res.Err = err.Error()
		return res, TextureRef{}
	}

	if spec.Supersample > 1 {
		buf, err = downsample(buf, spec.Supersample)
		if err != nil {
			res.Status = StatusFailed
			res.Err = err.Error()
			return res, TextureRef{}
		}
	}
	if spec.Channel == ChannelNormal {
		renormalizeNormals(buf)
	}
	if spec.Channel == ChannelMetalness {
		if lum := buf.MeanLuminance(); lum < p.opts.MetalnessWarnThreshold {
			res.Warning = fmt.Sprintf("metalness bake is near black (mean luminance %.4f)", lum)
			p.log.Warnf("%s: %s", job.material.ID, res.Warning)
		}
	}

	data, err := EncodeTexture(buf, p.opts.Format, p.opts.JPEGQuality)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err.Error()
		return res, TextureRef{}
	}
	ref, err := bundler.WriteTexture(job.material.ID, spec.Channel, spec, p.opts.Format, data)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err.Error()
		return res, TextureRef{}
	}

	// A bake that outlived cancellation still lands in the report, but
	// must not seed the cache.
	if p.cache != nil && ctx.Err() == nil {
		if _, err := p.cache.Store(key, buf.Width, buf.Height, spec.ColorSpace, p.opts.Format, data); err != nil {
			p.log.Warnf("cache store for %s/%s: %v", job.material.ID, spec.Channel, err)
		}
	}

	res.Status = StatusBaked
	res.Path = ref.Path
	return res, ref
}
