package lookdev

import (
	"fmt"
	"sort"
)

type BakeStatus string

const (
	StatusBaked     BakeStatus = "baked"
	StatusCached    BakeStatus = "cached"
	StatusSkipped   BakeStatus = "skipped"
	StatusFailed    BakeStatus = "failed"
	StatusCancelled BakeStatus = "cancelled"
)

// ChannelResult records the fate of one channel of one material.
type ChannelResult struct {
	Channel Channel    `json:"channel"`
	Status  BakeStatus `json:"status"`
	Path    string     `json:"path,omitempty"`
	Warning string     `json:"warning,omitempty"`
	Err     string     `json:"error,omitempty"`
}

// MaterialResult rolls up one material. Status is baked or cached only
// when every channel came through and the material entered the bundle.
type MaterialResult struct {
	ID          MaterialID      `json:"id"`
	Name        string          `json:"name"`
	Status      BakeStatus      `json:"status"`
	Hash        string          `json:"graph_hash,omitempty"`
	Meshes      []MeshID        `json:"meshes,omitempty"`
	Channels    []ChannelResult `json:"channels,omitempty"`
	Unsupported []string        `json:"unsupported,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// warnings flattens unsupported shader inputs and channel warnings into
// run-level warning strings.
func (m *MaterialResult) warnings() []string {
	var out []string
	for _, s := range m.Unsupported {
		out = append(out, fmt.Sprintf("material %s: shader input %q has no bakeable channel", m.ID, s))
	}
	for _, ch := range m.Channels {
		if ch.Warning != "" {
			out = append(out, fmt.Sprintf("material %s/%s: %s", m.ID, ch.Channel, ch.Warning))
		}
	}
	return out
}

type LightResult struct {
	ID         LightID       `json:"id"`
	Name       string        `json:"name"`
	TargetKind string        `json:"target_kind,omitempty"`
	Report     MappingReport `json:"report"`
}

type GeometryResult struct {
	Mesh MeshID `json:"mesh"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	Err  string `json:"error,omitempty"`
}

// RunReport is the complete account of one pipeline run. A run that
// reaches the orchestrator always produces a report, partial runs
// included.
type RunReport struct {
	RunID     string           `json:"run_id"`
	Materials []MaterialResult `json:"materials"`
	Lights    []LightResult    `json:"lights"`
	Geometry  []GeometryResult `json:"geometry"`
	Warnings  []string         `json:"warnings,omitempty"`

	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	TexturesWritten int            `json:"textures_written"`
	Cancelled       bool           `json:"cancelled,omitempty"`
	Bundle          *BundleSummary `json:"bundle,omitempty"`
}

// MaterialsByStatus counts materials per rollup status.
func (r *RunReport) MaterialsByStatus() map[BakeStatus]int {
	out := make(map[BakeStatus]int)
	for _, m := range r.Materials {
		out[m.Status]++
	}
	return out
}

// Failed reports whether any material or geometry export failed.
func (r *RunReport) Failed() bool {
	for _, m := range r.Materials {
		if m.Status == StatusFailed {
			return true
		}
	}
	for _, g := range r.Geometry {
		if g.Err != "" {
			return true
		}
	}
	return false
}

func (r *RunReport) sortResults() {
	sort.Slice(r.Materials, func(i, j int) bool { return r.Materials[i].ID < r.Materials[j].ID })
	sort.Slice(r.Lights, func(i, j int) bool { return r.Lights[i].ID < r.Lights[j].ID })
	sort.Slice(r.Geometry, func(i, j int) bool { return r.Geometry[i].Mesh < r.Geometry[j].Mesh })
	sort.Strings(r.Warnings)
}

// rollupMaterial decides the material status from its channel results.
// A failed channel fails the material even when other channels were
// cancelled; otherwise any cancelled channel marks it cancelled.
func rollupMaterial(channels []ChannelResult) BakeStatus {
	status := StatusCached
	cancelled := false
	for _, ch := range channels {
		switch ch.Status {
		case StatusFailed:
			return StatusFailed
		case StatusCancelled:
			cancelled = true
		case StatusBaked:
			status = StatusBaked
		}
	}
	if cancelled {
		return StatusCancelled
	}
	return status
}
