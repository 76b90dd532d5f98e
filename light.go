package lookdev

import "fmt"

type LightKind uint32

const (
	LightKindPoint LightKind = 0
	LightKindSpot  LightKind = 1
	LightKindArea  LightKind = 2
	LightKindSun   LightKind = 3
)

func (k LightKind) String() string {
	switch k {
	case LightKindPoint:
		return "point"
	case LightKindSpot:
		return "spot"
	case LightKindArea:
		return "area"
	case LightKindSun:
		return "sun"
	}
	return fmt.Sprintf("LightKind(%d)", uint32(k))
}

// SourceLight is one light read from the host scene. Attrs holds the
// host-native attribute set, keyed by host attribute name. Power is in
// watts, angles in radians, distances in meters.
type SourceLight struct {
	ID    LightID
	Name  string
	Kind  LightKind
	Attrs map[string]AttrValue
}

// TargetLight is the result of mapping a SourceLight onto the target
// application's light model. Kind names the target light type. Attrs
// holds target-native values; angles are in degrees there.
type TargetLight struct {
	ID    LightID
	Name  string
	Kind  string
	Attrs map[string]AttrValue
}

// Source attribute names recognized by the built-in mapping rules.
const (
	AttrPower          = "power"           // watts (sun: irradiance, W/m2)
	AttrColor          = "color"           // linear RGB
	AttrTemperature    = "temperature"     // kelvin
	AttrRadius         = "radius"          // soft shadow source radius, meters
	AttrSpotSize       = "spot_size"       // full cone angle, radians
	AttrSpotBlend      = "spot_blend"      // 0..1 edge softness
	AttrShape          = "shape"           // area shape enum
	AttrSize           = "size"            // area width, meters
	AttrSizeY          = "size_y"          // area height, meters
	AttrSunAngle       = "angle"           // sun angular diameter, radians
	AttrFalloff        = "falloff_exponent"
	AttrCutoffDistance = "cutoff_distance" // meters
)

// Area shape enum values.
const (
	ShapeSquare    = "SQUARE"
	ShapeRectangle = "RECTANGLE"
	ShapeDisk      = "DISK"
	ShapeEllipse   = "ELLIPSE"
)
