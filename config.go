package poisson

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/gogpu/gputypes"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/poisson/internal/gpu"
)

// Mode selects how shaders reach the device and how many frames may be in
// flight.
type Mode string

const (
	// ModeExplicit compiles WGSL to SPIR-V up front and keeps several
	// frames in flight. It is the mode of standalone devices.
	ModeExplicit Mode = "explicit"

	// ModePortable hands WGSL to the device unchanged and renders with a
	// single frame in flight. It is the mode of host-provided devices.
	ModePortable Mode = "portable"
)

// Configuration defaults.
const (
	DefaultWidth          = 800
	DefaultHeight         = 600
	DefaultFramesInFlight = 3
)

// maxConfigSize bounds config files read by LoadConfig.
const maxConfigSize = 1024 * 1024

// ErrInvalidConfig is returned for config files that cannot be used.
var ErrInvalidConfig = errors.New("poisson: invalid config")

// Config is the backend configuration. Start from DefaultConfig; unset
// frame settings of any Config take their defaults.
type Config struct {
	// Backend names the device opener ("vulkan", "noop"). Empty selects
	// the best available one.
	Backend string `yaml:"backend"`

	// Mode overrides the mode implied by the device source.
	Mode Mode `yaml:"mode"`

	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`

	// FramesInFlight is the number of frame slots. Portable mode always
	// uses one.
	FramesInFlight int `yaml:"frames_in_flight"`

	// FenceTimeout bounds every fence wait. Expiry is device loss.
	FenceTimeout time.Duration `yaml:"fence_timeout"`

	// ClearColor is the RGBA color each frame starts from.
	ClearColor [4]float64 `yaml:"clear_color"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		FramesInFlight: DefaultFramesInFlight,
		FenceTimeout:   gpu.DefaultFenceTimeout,
		ClearColor:     [4]float64{0, 0, 0, 1},
	}
}

// withDefaults fills unset frame settings. The extent is left alone: a
// 0x0 surface is valid and renders nothing until resized.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FramesInFlight <= 0 {
		c.FramesInFlight = d.FramesInFlight
	}
	if c.FenceTimeout <= 0 {
		c.FenceTimeout = d.FenceTimeout
	}
	return c
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch c.Mode {
	case "", ModeExplicit, ModePortable:
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.FramesInFlight < 0 {
		return fmt.Errorf("%w: frames_in_flight %d", ErrInvalidConfig, c.FramesInFlight)
	}
	if c.FenceTimeout < 0 {
		return fmt.Errorf("%w: fence_timeout %v", ErrInvalidConfig, c.FenceTimeout)
	}
	for i, v := range c.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: clear_color[%d] = %v", ErrInvalidConfig, i, v)
		}
	}
	return nil
}

func (c Config) clearColor() gputypes.Color {
	return gputypes.Color{R: c.ClearColor[0], G: c.ClearColor[1], B: c.ClearColor[2], A: c.ClearColor[3]}
}

// ParseConfig decodes a YAML configuration. Fields missing from data keep
// their DefaultConfig values.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file. World-writable files and
// files larger than 1 MiB are refused.
func LoadConfig(path string) (Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("stat config: %w", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0002 != 0 {
		Logger().Error("config is world-writable, refusing to load", "path", path, "mode", info.Mode())
		return Config{}, fmt.Errorf("%w: %s is world-writable", ErrInvalidConfig, path)
	}
	if info.Size() > maxConfigSize {
		Logger().Warn("config file too large", "path", path, "size", info.Size())
		return Config{}, fmt.Errorf("%w: %s is %d bytes", ErrInvalidConfig, path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	Logger().Info("loaded config", "path", path, "size", info.Size())
	return cfg, nil
}
