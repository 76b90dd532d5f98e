package lookdev

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration decodes TOML duration strings such as "90s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ChannelOverride tunes one channel away from the run-wide defaults. Zero
// fields inherit.
type ChannelOverride struct {
	Resolution  int `toml:"resolution"`
	Samples     int `toml:"samples"`
	Supersample int `toml:"supersample"`
}

// Options configure a pipeline run.
type Options struct {
	// ProjectRoot is the bundle output directory. Required.
	ProjectRoot string `toml:"project_root"`
	// CacheDir holds the bake cache. Empty disables caching.
	CacheDir string `toml:"cache_dir"`

	Resolution  int         `toml:"resolution"`
	Supersample int         `toml:"supersample"`
	Samples     int         `toml:"samples"`
	Margin      int         `toml:"margin"`
	Device      Device      `toml:"device"`
	Format      ImageFormat `toml:"format"`
	JPEGQuality int         `toml:"jpeg_quality"`

	// Workers caps concurrent material processing. Bakes still serialize
	// on the render backend; workers overlap analysis, encoding and IO.
	Workers int `toml:"workers"`
	// MaterialTimeout is advisory: checked between channel bakes, never
	// interrupting a bake mid-flight. Zero disables it.
	MaterialTimeout Duration `toml:"material_timeout"`
	// MetalnessWarnThreshold flags near-black metalness bakes whose mean
	// luminance falls below it. Classification only.
	MetalnessWarnThreshold float64 `toml:"metalness_warn_threshold"`

	Channels map[string]ChannelOverride `toml:"channels"`
	Geometry GeometryExportOptions      `toml:"geometry"`
}

func DefaultOptions() Options {
	return Options{
		Resolution:             1024,
		Supersample:            1,
		Samples:                10,
		Margin:                 16,
		Device:                 DeviceGPU,
		Format:                 FormatPNG,
		JPEGQuality:            90,
		Workers:                4,
		MetalnessWarnThreshold: 0.02,
		Geometry:               DefaultGeometryExportOptions(),
	}
}

// LoadOptions reads a TOML options file over the defaults, then applies
// LOOKDEV_* environment overrides.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("options: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("options: parse %s: %w", path, err)
	}
	opts.applyEnv()
	return opts, nil
}

func (o *Options) applyEnv() {
	if v := os.Getenv("LOOKDEV_PROJECT_ROOT"); v != "" {
		o.ProjectRoot = v
	}
	if v := os.Getenv("LOOKDEV_CACHE_DIR"); v != "" {
		o.CacheDir = v
	}
	if v := os.Getenv("LOOKDEV_DEVICE"); v != "" {
		o.Device = Device(v)
	}
	if v := os.Getenv("LOOKDEV_FORMAT"); v != "" {
		o.Format = ImageFormat(v)
	}
	if v := os.Getenv("LOOKDEV_RESOLUTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.Resolution = n
		}
	}
	if v := os.Getenv("LOOKDEV_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.Samples = n
		}
	}
	if v := os.Getenv("LOOKDEV_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.Workers = n
		}
	}
}

func (o *Options) validate() error {
	if o.ProjectRoot == "" {
		return fmt.Errorf("options: project_root is required")
	}
	if o.Resolution <= 0 {
		return fmt.Errorf("options: resolution must be positive, got %d", o.Resolution)
	}
	if o.Supersample < 1 {
		return fmt.Errorf("options: supersample must be at least 1, got %d", o.Supersample)
	}
	if o.Samples <= 0 {
		return fmt.Errorf("options: samples must be positive, got %d", o.Samples)
	}
	if o.Margin < 0 {
		return fmt.Errorf("options: margin must not be negative, got %d", o.Margin)
	}
	if o.Device != DeviceGPU && o.Device != DeviceCPU {
		return fmt.Errorf("options: unknown device %q", o.Device)
	}
	if !o.Format.valid() {
		return fmt.Errorf("options: unknown image format %q", o.Format)
	}
	if o.Format == FormatJPEG && (o.JPEGQuality < 1 || o.JPEGQuality > 100) {
		return fmt.Errorf("options: jpeg_quality must be in 1..100, got %d", o.JPEGQuality)
	}
	if o.Workers < 1 {
		return fmt.Errorf("options: workers must be at least 1, got %d", o.Workers)
	}
	for name, ov := range o.Channels {
		if _, ok := channelPolicy[Channel(name)]; !ok {
			return fmt.Errorf("options: unknown channel %q", name)
		}
		if ov.Resolution < 0 || ov.Samples < 0 || ov.Supersample < 0 {
			return fmt.Errorf("options: channel %q overrides must not be negative", name)
		}
	}
	return nil
}
