package lookdev

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// luminousEfficacy converts radiometric watts to photometric lumens at the
// 555nm peak, the convention the source application uses for light energy.
const luminousEfficacy = 683.0

// fullSphereSolidAngle is 4*pi steradians.
const fullSphereSolidAngle = 4 * math.Pi

func validNum(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func num(attrs map[string]AttrValue, name string) float64 {
	return attrs[name].Num
}

func pointPowerToCandela(watts float64) float64 {
	return watts * luminousEfficacy / fullSphereSolidAngle
}

// spotPowerToCandela distributes the lamp's luminous flux over the cone's
// solid angle. coneAngle is the full cone angle in radians.
func spotPowerToCandela(watts, coneAngle float64) float64 {
	solid := 2 * math.Pi * (1 - math.Cos(coneAngle/2))
	return watts * luminousEfficacy / solid
}

func areaPowerToLumens(watts float64) float64 {
	return watts * luminousEfficacy
}

func irradianceToLux(wattsPerSquareMeter float64) float64 {
	return wattsPerSquareMeter * luminousEfficacy
}

// kelvinToRGB approximates blackbody color for temperatures between 1000K
// and 12000K, normalized to [0, 1] linear RGB.
func kelvinToRGB(kelvin float64) [3]float64 {
	t := mgl64.Clamp(kelvin, 1000, 12000) / 100
	var r, g, b float64
	if t <= 66 {
		r = 255
	} else {
		r = 329.698727446 * math.Pow(t-60, -0.1332047592)
	}
	if t <= 66 {
		g = 99.4708025861*math.Log(t) - 161.1195681661
	} else {
		g = 288.1221695283 * math.Pow(t-60, -0.0755148492)
	}
	if t >= 66 {
		b = 255
	} else if t <= 19 {
		b = 0
	} else {
		b = 138.5177312231*math.Log(t-10) - 305.0447927307
	}
	return [3]float64{
		mgl64.Clamp(r/255, 0, 1),
		mgl64.Clamp(g/255, 0, 1),
		mgl64.Clamp(b/255, 0, 1),
	}
}

func mulColor(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

const (
	reasonInvalidValue  = "invalid source value"
	reasonBlackbody     = "blackbody approximation of color temperature"
	reasonInverseSquare = "target falloff is inverse-square"
	reasonBlendCurve    = "source blend curve differs from target inner cone falloff"
	reasonDiskShape     = "disk shape approximated by bounding rectangle"
	reasonSpecularModel = "target specular model differs"
)

// DefaultTargetSchema is the built-in rule set for a physically based
// target application: point and spot lights in candela, area lights in
// lumens, sun in lux, angles in degrees.
func DefaultTargetSchema() *TargetSchema {
	return &TargetSchema{
		Name: "pbr",
		Kinds: map[LightKind]*RuleSet{
			LightKindPoint: pointRules(),
			LightKindSpot:  spotRules(),
			LightKindArea:  areaRules(),
			LightKindSun:   sunRules(),
		},
		Material: materialRules(),
	}
}

// colorRules translate color and color temperature. When both are present
// the blackbody tint multiplies the base color, matching the source
// renderer's behavior.
func colorRules() []Rule {
	return []Rule{
		{
			Target:  "color",
			Sources: []string{AttrTemperature, AttrColor},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				k := num(attrs, AttrTemperature)
				if !validNum(k) || k <= 0 {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				c := mulColor(kelvinToRGB(k), attrs[AttrColor].Color)
				return Color(c[0], c[1], c[2]), MapApproximated, reasonBlackbody
			},
		},
		{
			Target:  "color",
			Sources: []string{AttrTemperature},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				k := num(attrs, AttrTemperature)
				if !validNum(k) || k <= 0 {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				c := kelvinToRGB(k)
				return Color(c[0], c[1], c[2]), MapApproximated, reasonBlackbody
			},
		},
		{
			Target:  "color",
			Sources: []string{AttrColor},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				c := attrs[AttrColor].Color
				return Color(c[0], c[1], c[2]), MapExact, ""
			},
		},
	}
}

func falloffRule() Rule {
	return Rule{
		Sources: []string{AttrFalloff},
		Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
			exp := num(attrs, AttrFalloff)
			if mgl64.FloatEqualThreshold(exp, 2, 1e-9) {
				return AttrValue{}, MapExact, ""
			}
			return AttrValue{}, MapApproximated, reasonInverseSquare
		},
	}
}

func sourceRadiusRule() Rule {
	return Rule{
		Target:  "source_radius",
		Sources: []string{AttrRadius},
		Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
			r := num(attrs, AttrRadius)
			if !validNum(r) || r < 0 {
				return AttrValue{}, MapDropped, reasonInvalidValue
			}
			return Distance(r), MapExact, ""
		},
	}
}

func attenuationRule() Rule {
	return Rule{
		Target:  "attenuation_radius",
		Sources: []string{AttrCutoffDistance},
		Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
			d := num(attrs, AttrCutoffDistance)
			if !validNum(d) || d <= 0 {
				return AttrValue{}, MapDropped, reasonInvalidValue
			}
			return Distance(d), MapExact, ""
		},
	}
}

func pointRules() *RuleSet {
	rules := []Rule{
		{
			Target:  "intensity",
			Sources: []string{AttrPower},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				w := num(attrs, AttrPower)
				if !validNum(w) || w < 0 {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				return Scalar(pointPowerToCandela(w)), MapExact, ""
			},
		},
		sourceRadiusRule(),
		attenuationRule(),
		falloffRule(),
	}
	rules = append(rules, colorRules()...)
	return &RuleSet{
		TargetKind: "PointLight",
		Defaults:   map[string]AttrValue{"attenuation_radius": Distance(40)},
		Rules:      rules,
	}
}

func spotRules() *RuleSet {
	rules := []Rule{
		{
			// Flux spread over the cone's solid angle rather than the full
			// sphere, so a narrow spot reads brighter than a point lamp of
			// the same wattage.
			Target:  "intensity",
			Sources: []string{AttrPower},
			Applies: func(attrs map[string]AttrValue) bool {
				_, ok := attrs[AttrSpotSize]
				return ok
			},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				w := num(attrs, AttrPower)
				cone := num(attrs, AttrSpotSize)
				if !validNum(w) || w < 0 || !validNum(cone) || cone <= 0 || cone > math.Pi {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				return Scalar(spotPowerToCandela(w, cone)), MapExact, ""
			},
		},
		{
			Target:  "intensity",
			Sources: []string{AttrPower},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				w := num(attrs, AttrPower)
				if !validNum(w) || w < 0 {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				return Scalar(pointPowerToCandela(w)), MapExact, ""
			},
		},
		{
			Target:  "outer_cone_angle",
			Sources: []string{AttrSpotSize},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				cone := num(attrs, AttrSpotSize)
				if !validNum(cone) || cone <= 0 || cone > math.Pi {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				return Scalar(mgl64.RadToDeg(cone / 2)), MapExact, ""
			},
		},
		{
			Target:  "inner_cone_angle",
			Sources: []string{AttrSpotBlend},
			Applies: func(attrs map[string]AttrValue) bool {
				_, ok := attrs[AttrSpotSize]
				return ok
			},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				cone := num(attrs, AttrSpotSize)
				blend := num(attrs, AttrSpotBlend)
				if !validNum(cone) || cone <= 0 || cone > math.Pi || !validNum(blend) {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				blend = mgl64.Clamp(blend, 0, 1)
				outer := mgl64.RadToDeg(cone / 2)
				return Scalar(outer * (1 - blend)), MapApproximated, reasonBlendCurve
			},
		},
		sourceRadiusRule(),
		attenuationRule(),
		falloffRule(),
	}
	rules = append(rules, colorRules()...)
	return &RuleSet{
		TargetKind: "SpotLight",
		Defaults:   map[string]AttrValue{"attenuation_radius": Distance(40)},
		Rules:      rules,
	}
}

func areaRules() *RuleSet {
	rules := []Rule{
		{
			Target:  "intensity",
			Sources: []string{AttrPower},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				w := num(attrs, AttrPower)
				if !validNum(w) || w < 0 {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				return Scalar(areaPowerToLumens(w)), MapExact, ""
			},
		},
		{
			Target:  "width",
			Sources: []string{AttrSize},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				s := num(attrs, AttrSize)
				if !validNum(s) || s <= 0 {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				return Distance(s), MapExact, ""
			},
		},
		{
			Target:  "height",
			Sources: []string{AttrSizeY},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				s := num(attrs, AttrSizeY)
				if !validNum(s) || s <= 0 {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				return Distance(s), MapExact, ""
			},
		},
		{
			// Square and disk lamps carry a single size.
			Target:  "height",
			Sources: []string{AttrSize},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				s := num(attrs, AttrSize)
				if !validNum(s) || s <= 0 {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				return Distance(s), MapExact, ""
			},
		},
		{
			Sources: []string{AttrShape},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				switch attrs[AttrShape].Enum {
				case ShapeSquare, ShapeRectangle:
					return AttrValue{}, MapExact, ""
				case ShapeDisk, ShapeEllipse:
					return AttrValue{}, MapApproximated, reasonDiskShape
				}
				return AttrValue{}, MapDropped, "unknown area shape"
			},
		},
	}
	rules = append(rules, colorRules()...)
	return &RuleSet{TargetKind: "RectLight", Rules: rules}
}

func sunRules() *RuleSet {
	rules := []Rule{
		{
			Target:  "illuminance",
			Sources: []string{AttrPower},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				irr := num(attrs, AttrPower)
				if !validNum(irr) || irr < 0 {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				return Scalar(irradianceToLux(irr)), MapExact, ""
			},
		},
		{
			Target:  "angular_diameter",
			Sources: []string{AttrSunAngle},
			Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
				a := num(attrs, AttrSunAngle)
				if !validNum(a) || a < 0 || a > math.Pi {
					return AttrValue{}, MapDropped, reasonInvalidValue
				}
				return Scalar(mgl64.RadToDeg(a)), MapExact, ""
			},
		},
	}
	rules = append(rules, colorRules()...)
	return &RuleSet{TargetKind: "DirectionalLight", Rules: rules}
}

func clamped01Rule(source, target string) Rule {
	return Rule{
		Target:  target,
		Sources: []string{source},
		Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
			v := num(attrs, source)
			if !validNum(v) {
				return AttrValue{}, MapDropped, reasonInvalidValue
			}
			if v < 0 || v > 1 {
				return Scalar(mgl64.Clamp(v, 0, 1)), MapApproximated, "clamped to [0, 1]"
			}
			return Scalar(v), MapExact, ""
		},
	}
}

func materialRules() *RuleSet {
	return &RuleSet{
		TargetKind: "Material",
		Rules: []Rule{
			{
				Target:  "base_color",
				Sources: []string{"Base Color"},
				Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
					c := attrs["Base Color"].Color
					return Color(c[0], c[1], c[2]), MapExact, ""
				},
			},
			clamped01Rule("Metallic", "metallic"),
			clamped01Rule("Roughness", "roughness"),
			clamped01Rule("Alpha", "opacity"),
			{
				Target:  "ior",
				Sources: []string{"IOR"},
				Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
					v := num(attrs, "IOR")
					if !validNum(v) || v < 0 {
						return AttrValue{}, MapDropped, reasonInvalidValue
					}
					if v < 1 {
						return Scalar(1), MapApproximated, "clamped to target minimum 1.0"
					}
					return Scalar(v), MapExact, ""
				},
			},
			{
				Target:  "emission_strength",
				Sources: []string{"Emission Strength"},
				Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
					v := num(attrs, "Emission Strength")
					if !validNum(v) || v < 0 {
						return AttrValue{}, MapDropped, reasonInvalidValue
					}
					return Scalar(v), MapExact, ""
				},
			},
			{
				Target:  "specular",
				Sources: []string{"Specular IOR Level"},
				Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
					v := num(attrs, "Specular IOR Level")
					if !validNum(v) {
						return AttrValue{}, MapDropped, reasonInvalidValue
					}
					return Scalar(mgl64.Clamp(v, 0, 1)), MapApproximated, reasonSpecularModel
				},
			},
			{
				Target:  "specular",
				Sources: []string{"Specular"},
				Convert: func(attrs map[string]AttrValue) (AttrValue, MappingClass, string) {
					v := num(attrs, "Specular")
					if !validNum(v) {
						return AttrValue{}, MapDropped, reasonInvalidValue
					}
					return Scalar(mgl64.Clamp(v, 0, 1)), MapApproximated, reasonSpecularModel
				},
			},
		},
	}
}
