package lookdev

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryFor(t *testing.T, entries []ReportEntry, source string) ReportEntry {
	t.Helper()
	for _, e := range entries {
		if e.Source == source {
			return e
		}
	}
	t.Fatalf("No report entry for source %q", source)
	return ReportEntry{}
}

func TestMapPointLightIntensity(t *testing.T) {
	tl, rep := MapLight(SourceLight{
		ID:   "L1",
		Name: "key",
		Kind: LightKindPoint,
		Attrs: map[string]AttrValue{
			AttrPower: Scalar(1000),
			AttrColor: Color(1, 1, 1),
		},
	}, DefaultTargetSchema())

	require.Equal(t, "PointLight", tl.Kind)
	want := 1000 * 683.0 / (4 * math.Pi)
	require.InDelta(t, want, tl.Attrs["intensity"].Num, 1e-6)
	assert.Equal(t, MapExact, entryFor(t, rep.Entries, AttrPower).Class)
	assert.Equal(t, "intensity", entryFor(t, rep.Entries, AttrPower).Target)
}

func TestMapLightReportCoversEverySourceAttribute(t *testing.T) {
	attrs := map[string]AttrValue{
		AttrPower:     Scalar(40),
		AttrColor:     Color(1, 0.9, 0.8),
		AttrRadius:    Distance(0.1),
		"shadow_bias": Scalar(0.02),
	}
	_, rep := MapLight(SourceLight{Kind: LightKindPoint, Attrs: attrs}, DefaultTargetSchema())

	require.Len(t, rep.Entries, len(attrs))
	seen := map[string]int{}
	for _, e := range rep.Entries {
		seen[e.Source]++
	}
	for name := range attrs {
		assert.Equal(t, 1, seen[name], "attribute %q must appear exactly once", name)
	}

	bias := entryFor(t, rep.Entries, "shadow_bias")
	assert.Equal(t, MapDropped, bias.Class)
	assert.Equal(t, "no target equivalent", bias.Reason)
	assert.Empty(t, bias.Target)
}

func TestMapLightDeterministic(t *testing.T) {
	src := SourceLight{
		Kind: LightKindSpot,
		Attrs: map[string]AttrValue{
			AttrPower:     Scalar(120),
			AttrSpotSize:  Angle(1.2),
			AttrSpotBlend: Scalar(0.3),
			AttrColor:     Color(1, 1, 1),
			"custom_a":    Scalar(1),
			"custom_b":    Scalar(2),
		},
	}
	l1, r1 := MapLight(src, DefaultTargetSchema())
	l2, r2 := MapLight(src, DefaultTargetSchema())
	if !reflect.DeepEqual(l1, l2) {
		t.Error("Mapped light differs between identical runs")
	}
	if !reflect.DeepEqual(r1, r2) {
		t.Error("Report differs between identical runs")
	}
}

func TestSpotIntensitySpreadsOverCone(t *testing.T) {
	cone := math.Pi / 3
	tl, _ := MapLight(SourceLight{
		Kind: LightKindSpot,
		Attrs: map[string]AttrValue{
			AttrPower:    Scalar(1000),
			AttrSpotSize: Angle(cone),
		},
	}, DefaultTargetSchema())

	want := 1000 * 683.0 / (2 * math.Pi * (1 - math.Cos(cone/2)))
	require.InDelta(t, want, tl.Attrs["intensity"].Num, 1e-6)

	// A narrow cone concentrates the same flux into fewer steradians.
	narrow, _ := MapLight(SourceLight{
		Kind: LightKindSpot,
		Attrs: map[string]AttrValue{
			AttrPower:    Scalar(1000),
			AttrSpotSize: Angle(math.Pi / 6),
		},
	}, DefaultTargetSchema())
	assert.Greater(t, narrow.Attrs["intensity"].Num, tl.Attrs["intensity"].Num)
}

func TestSpotWithoutConeFallsBackToFullSphere(t *testing.T) {
	tl, _ := MapLight(SourceLight{
		Kind:  LightKindSpot,
		Attrs: map[string]AttrValue{AttrPower: Scalar(1000)},
	}, DefaultTargetSchema())
	want := 1000 * 683.0 / (4 * math.Pi)
	require.InDelta(t, want, tl.Attrs["intensity"].Num, 1e-6)
}

func TestSpotConeAngles(t *testing.T) {
	tl, rep := MapLight(SourceLight{
		Kind: LightKindSpot,
		Attrs: map[string]AttrValue{
			AttrPower:     Scalar(100),
			AttrSpotSize:  Angle(1.2),
			AttrSpotBlend: Scalar(0.25),
		},
	}, DefaultTargetSchema())

	outer := 0.6 * 180 / math.Pi
	require.InDelta(t, outer, tl.Attrs["outer_cone_angle"].Num, 1e-9)
	require.InDelta(t, outer*0.75, tl.Attrs["inner_cone_angle"].Num, 1e-9)

	assert.Equal(t, MapExact, entryFor(t, rep.Entries, AttrSpotSize).Class)
	blend := entryFor(t, rep.Entries, AttrSpotBlend)
	assert.Equal(t, MapApproximated, blend.Class)
	assert.NotEmpty(t, blend.Reason)
}

func TestAreaLight(t *testing.T) {
	tl, rep := MapLight(SourceLight{
		Kind: LightKindArea,
		Attrs: map[string]AttrValue{
			AttrPower: Scalar(100),
			AttrShape: Enum(ShapeRectangle),
			AttrSize:  Distance(2),
			AttrSizeY: Distance(1),
		},
	}, DefaultTargetSchema())

	require.Equal(t, "RectLight", tl.Kind)
	require.InDelta(t, 68300.0, tl.Attrs["intensity"].Num, 1e-9)
	assert.Equal(t, Distance(2), tl.Attrs["width"])
	assert.Equal(t, Distance(1), tl.Attrs["height"])
	assert.Equal(t, MapExact, entryFor(t, rep.Entries, AttrShape).Class)
}

func TestAreaDiskIsApproximated(t *testing.T) {
	tl, rep := MapLight(SourceLight{
		Kind: LightKindArea,
		Attrs: map[string]AttrValue{
			AttrPower: Scalar(50),
			AttrShape: Enum(ShapeDisk),
			AttrSize:  Distance(0.5),
		},
	}, DefaultTargetSchema())

	// A single size drives both dimensions.
	assert.Equal(t, Distance(0.5), tl.Attrs["width"])
	assert.Equal(t, Distance(0.5), tl.Attrs["height"])
	shape := entryFor(t, rep.Entries, AttrShape)
	assert.Equal(t, MapApproximated, shape.Class)
	assert.NotEmpty(t, shape.Reason)
}

func TestSunLight(t *testing.T) {
	tl, _ := MapLight(SourceLight{
		Kind: LightKindSun,
		Attrs: map[string]AttrValue{
			AttrPower:    Scalar(1.0),
			AttrSunAngle: Angle(0.00918),
		},
	}, DefaultTargetSchema())

	require.Equal(t, "DirectionalLight", tl.Kind)
	require.InDelta(t, 683.0, tl.Attrs["illuminance"].Num, 1e-9)
	require.InDelta(t, 0.00918*180/math.Pi, tl.Attrs["angular_diameter"].Num, 1e-9)
}

func TestNegativePowerDropsConversion(t *testing.T) {
	tl, rep := MapLight(SourceLight{
		Kind:  LightKindPoint,
		Attrs: map[string]AttrValue{AttrPower: Scalar(-5)},
	}, DefaultTargetSchema())

	if _, ok := tl.Attrs["intensity"]; ok {
		t.Error("Invalid power must not produce an intensity")
	}
	e := entryFor(t, rep.Entries, AttrPower)
	assert.Equal(t, MapDropped, e.Class)
	assert.Empty(t, e.Target)
	assert.NotEmpty(t, e.Reason)
}

func TestDroppedReasonLiterals(t *testing.T) {
	// Dropped-entry reasons are part of the report format; readers
	// match them verbatim.
	_, rep := MapLight(SourceLight{
		Kind: LightKindPoint,
		Attrs: map[string]AttrValue{
			AttrPower:    Scalar(-5),
			"custom_tag": Scalar(1),
		},
	}, DefaultTargetSchema())

	assert.Equal(t, "invalid source value", entryFor(t, rep.Entries, AttrPower).Reason)
	assert.Equal(t, "no target equivalent", entryFor(t, rep.Entries, "custom_tag").Reason)
}

func TestDroppedConversionFallsBackToTargetDefault(t *testing.T) {
	// Invalid cutoff distance: the conversion drops, the schema default
	// for attenuation_radius still applies.
	tl, _ := MapLight(SourceLight{
		Kind: LightKindPoint,
		Attrs: map[string]AttrValue{
			AttrPower:          Scalar(10),
			AttrCutoffDistance: Distance(-1),
		},
	}, DefaultTargetSchema())
	require.Equal(t, Distance(40), tl.Attrs["attenuation_radius"])

	// Absent entirely: same default.
	tl2, _ := MapLight(SourceLight{
		Kind:  LightKindPoint,
		Attrs: map[string]AttrValue{AttrPower: Scalar(10)},
	}, DefaultTargetSchema())
	require.Equal(t, Distance(40), tl2.Attrs["attenuation_radius"])

	// Present and valid: the source wins.
	tl3, _ := MapLight(SourceLight{
		Kind: LightKindPoint,
		Attrs: map[string]AttrValue{
			AttrPower:          Scalar(10),
			AttrCutoffDistance: Distance(25),
		},
	}, DefaultTargetSchema())
	require.Equal(t, Distance(25), tl3.Attrs["attenuation_radius"])
}

func TestUnknownLightKindDropsEverything(t *testing.T) {
	tl, rep := MapLight(SourceLight{
		Kind: LightKind(9),
		Attrs: map[string]AttrValue{
			AttrPower: Scalar(10),
			AttrColor: Color(1, 1, 1),
		},
	}, DefaultTargetSchema())

	assert.Empty(t, tl.Kind)
	assert.Empty(t, tl.Attrs)
	require.Len(t, rep.Entries, 2)
	for _, e := range rep.Entries {
		assert.Equal(t, MapDropped, e.Class)
	}
}

func TestColorTemperaturePrecedence(t *testing.T) {
	schema := DefaultTargetSchema()

	// Temperature and color together: blackbody tint times base color.
	tl, rep := MapLight(SourceLight{
		Kind: LightKindPoint,
		Attrs: map[string]AttrValue{
			AttrPower:       Scalar(10),
			AttrColor:       Color(0.5, 0.5, 0.5),
			AttrTemperature: Scalar(6600),
		},
	}, schema)
	tint := kelvinToRGB(6600)
	got := tl.Attrs["color"]
	require.Equal(t, AttrColor3, got.Type)
	require.InDelta(t, tint[0]*0.5, got.Color[0], 1e-9)
	require.InDelta(t, tint[1]*0.5, got.Color[1], 1e-9)
	require.InDelta(t, tint[2]*0.5, got.Color[2], 1e-9)
	assert.Equal(t, MapApproximated, entryFor(t, rep.Entries, AttrTemperature).Class)
	assert.Equal(t, MapApproximated, entryFor(t, rep.Entries, AttrColor).Class)

	// Color alone is exact.
	tl2, rep2 := MapLight(SourceLight{
		Kind: LightKindPoint,
		Attrs: map[string]AttrValue{
			AttrPower: Scalar(10),
			AttrColor: Color(1, 0.5, 0.25),
		},
	}, schema)
	assert.Equal(t, Color(1, 0.5, 0.25), tl2.Attrs["color"])
	assert.Equal(t, MapExact, entryFor(t, rep2.Entries, AttrColor).Class)
}

func TestKelvinToRGB(t *testing.T) {
	warm := kelvinToRGB(2000)
	assert.InDelta(t, 1.0, warm[0], 1e-9)
	assert.Less(t, warm[2], warm[1])

	cool := kelvinToRGB(10000)
	assert.InDelta(t, 1.0, cool[2], 1e-9)
	assert.Less(t, cool[0], 1.0)

	// Out-of-range temperatures clamp to the approximation's domain.
	assert.Equal(t, kelvinToRGB(1000), kelvinToRGB(200))
	assert.Equal(t, kelvinToRGB(12000), kelvinToRGB(50000))
}

func TestMapMaterialConstants(t *testing.T) {
	out, rep := MapMaterialConstants(map[string]AttrValue{
		"Base Color":         Color(0.8, 0.2, 0.1),
		"Metallic":           Scalar(1.5),
		"Roughness":          Scalar(0.4),
		"IOR":                Scalar(0.5),
		"Specular IOR Level": Scalar(0.5),
		"Subsurface Weight":  Scalar(0.1),
	}, DefaultTargetSchema())

	assert.Equal(t, Color(0.8, 0.2, 0.1), out["base_color"])
	assert.Equal(t, Scalar(1.0), out["metallic"])
	assert.Equal(t, Scalar(0.4), out["roughness"])
	assert.Equal(t, Scalar(1.0), out["ior"])
	assert.Equal(t, Scalar(0.5), out["specular"])

	assert.Equal(t, MapApproximated, entryFor(t, rep.Entries, "Metallic").Class)
	assert.Equal(t, MapExact, entryFor(t, rep.Entries, "Roughness").Class)
	assert.Equal(t, MapApproximated, entryFor(t, rep.Entries, "IOR").Class)
	assert.Equal(t, MapDropped, entryFor(t, rep.Entries, "Subsurface Weight").Class)

	exact, approx, dropped := rep.Counts()
	assert.Equal(t, 2, exact) // Base Color, Roughness
	assert.Equal(t, 3, approx)
	assert.Equal(t, 1, dropped)
}

func TestMapMaterialConstantsEmpty(t *testing.T) {
	out, rep := MapMaterialConstants(nil, DefaultTargetSchema())
	assert.Empty(t, out)
	assert.Empty(t, rep.Entries)
}
