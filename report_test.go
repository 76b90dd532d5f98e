package lookdev

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestRollupMaterial(t *testing.T) {
	cases := []struct {
		name     string
		channels []ChannelResult
		want     BakeStatus
	}{
		{"all cached", []ChannelResult{{Status: StatusCached}, {Status: StatusCached}}, StatusCached},
		{"mixed baked", []ChannelResult{{Status: StatusCached}, {Status: StatusBaked}}, StatusBaked},
		{"one failure wins", []ChannelResult{{Status: StatusBaked}, {Status: StatusFailed}}, StatusFailed},
		{"cancelled", []ChannelResult{{Status: StatusBaked}, {Status: StatusCancelled}}, StatusCancelled},
		{"failure beats cancelled", []ChannelResult{{Status: StatusCancelled}, {Status: StatusFailed}}, StatusFailed},
	}
	for _, c := range cases {
		if got := rollupMaterial(c.channels); got != c.want {
			t.Errorf("%s: expected %s, got %s", c.name, c.want, got)
		}
	}
}

func TestMaterialsByStatus(t *testing.T) {
	r := RunReport{Materials: []MaterialResult{
		{ID: "a", Status: StatusBaked},
		{ID: "b", Status: StatusBaked},
		{ID: "c", Status: StatusFailed},
	}}
	counts := r.MaterialsByStatus()
	if counts[StatusBaked] != 2 || counts[StatusFailed] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}
}

func TestRunReportFailed(t *testing.T) {
	ok := RunReport{Materials: []MaterialResult{{Status: StatusBaked}}}
	if ok.Failed() {
		t.Error("Healthy run must not report failure")
	}
	matFail := RunReport{Materials: []MaterialResult{{Status: StatusFailed}}}
	if !matFail.Failed() {
		t.Error("A failed material must fail the run")
	}
	geoFail := RunReport{Geometry: []GeometryResult{{Mesh: "m", Err: "exporter crashed"}}}
	if !geoFail.Failed() {
		t.Error("A failed mesh export must fail the run")
	}
}

func TestMaterialWarnings(t *testing.T) {
	m := MaterialResult{
		ID:          "mat_a",
		Unsupported: []string{"Sheen Weight"},
		Channels: []ChannelResult{
			{Channel: ChannelMetalness, Status: StatusBaked, Warning: "mean luminance 0.001 below threshold"},
			{Channel: ChannelBaseColor, Status: StatusBaked},
		},
	}
	w := m.warnings()
	if len(w) != 2 {
		t.Fatalf("Expected 2 warnings, got %d: %v", len(w), w)
	}
}

func TestSortResults(t *testing.T) {
	r := RunReport{
		Materials: []MaterialResult{{ID: "b"}, {ID: "a"}},
		Lights:    []LightResult{{ID: "z"}, {ID: "y"}},
		Geometry:  []GeometryResult{{Mesh: "2"}, {Mesh: "1"}},
		Warnings:  []string{"b", "a"},
	}
	r.sortResults()
	if r.Materials[0].ID != "a" || r.Lights[0].ID != "y" || r.Geometry[0].Mesh != "1" || r.Warnings[0] != "a" {
		t.Error("Results not sorted")
	}
}

func TestRunReportRoundTrip(t *testing.T) {
	report := &RunReport{
		RunID: "run-123",
		Materials: []MaterialResult{{
			ID:     "mat_a",
			Name:   "Rock",
			Status: StatusBaked,
			Hash:   "deadbeef",
			Channels: []ChannelResult{
				{Channel: ChannelBaseColor, Status: StatusBaked, Path: "materials/mat_a/base_color.png"},
			},
		}},
		Lights: []LightResult{{
			ID:         "light_a",
			Name:       "Key",
			TargetKind: "PointLight",
			Report: MappingReport{Entries: []ReportEntry{
				{Source: "power", Target: "intensity", Class: MapExact},
				{Source: "temperature", Target: "color", Class: MapApproximated, Reason: "blackbody"},
				{Source: "custom", Class: MapDropped, Reason: "no target equivalent"},
			}},
		}},
		Geometry:        []GeometryResult{{Mesh: "mesh_a", Name: "Cube", Path: "geometry/mesh_a.fbx"}},
		Warnings:        []string{"something odd"},
		CacheHits:       3,
		CacheMisses:     2,
		TexturesWritten: 5,
	}

	path := filepath.Join(t.TempDir(), "report.json")
	if err := SaveRunReport(path, report); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadRunReport(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(report, got) {
		t.Errorf("Round trip mismatch:\nwant %+v\ngot  %+v", report, got)
	}
}

func TestLoadRunReportMissingFile(t *testing.T) {
	if _, err := LoadRunReport(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Expected an error for a missing report file")
	}
}
