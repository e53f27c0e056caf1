// Package config loads the engine configuration file: window, renderer, logging and the scene
// lights. TOML and YAML are both accepted, selected by file extension.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/light"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for configuration files that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("unknown configuration format")

// Format is a configuration file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format selected by a file extension.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Format: the format
//   - error: ErrUnknownFormat for any other extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// Backend names the graphics context implementation a window is opened with.
type Backend string

const (
	BackendGL     Backend = "gl"
	BackendWebGPU Backend = "webgpu"
)

// WindowConfig configures the application window.
type WindowConfig struct {
	// Title is the window title. Default "oxy-tiny".
	Title string `toml:"title" yaml:"title"`
	// Width and Height are the initial client size in pixels. Default 1080x600.
	Width  int `toml:"width" yaml:"width"`
	Height int `toml:"height" yaml:"height"`
	// Backend is "gl" or "webgpu". Default "gl".
	Backend Backend `toml:"backend" yaml:"backend"`
	// VSync synchronizes presentation with the display refresh. Default true.
	VSync *bool `toml:"vsync" yaml:"vsync"`
}

// RendererConfig configures the renderer and the animation loop.
type RendererConfig struct {
	// ClearColor is the RGBA surface clear color. Default opaque black.
	ClearColor [4]float32 `toml:"clear_color" yaml:"clear_color"`
	// Background is a "#rrggbb" or "#rrggbbaa" clear color that replaces ClearColor when set.
	Background string `toml:"background" yaml:"background"`
	// MaxLights caps the lights uploaded per frame. Default light.MaxLights.
	MaxLights int `toml:"max_lights" yaml:"max_lights"`
	// ShadowBias is the depth comparison bias. Default light.DefaultShadowBias.
	ShadowBias float32 `toml:"shadow_bias" yaml:"shadow_bias"`
	// FrameLimit caps rendered frames per second, 0 renders every scheduled frame.
	FrameLimit float64 `toml:"frame_limit" yaml:"frame_limit"`
	// ClearEntities empties the draw list after every frame.
	ClearEntities bool `toml:"clear_entities" yaml:"clear_entities"`
	// Animate starts the animation clock running. Default true.
	Animate *bool `toml:"animate" yaml:"animate"`
}

// LogConfig configures the engine logger.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error". Default "info".
	Level string `toml:"level" yaml:"level"`
}

// Config is the engine configuration file.
type Config struct {
	Window   WindowConfig   `toml:"window" yaml:"window"`
	Renderer RendererConfig `toml:"renderer" yaml:"renderer"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Lights   []light.Config `toml:"lights" yaml:"lights"`
}

// Default returns the configuration used when no file is given: a 1080x600 OpenGL window with
// vsync, a black clear color, four lights at most, info logging and one white point light above
// the origin.
func Default() Config {
	c := Config{Lights: []light.Config{{Position: [3]float32{0, 5, 5}}}}
	return c.WithDefaults()
}

// WithDefaults fills the zero fields of c, including every light record.
func (c Config) WithDefaults() Config {
	if c.Window.Title == "" {
		c.Window.Title = "oxy-tiny"
	}
	if c.Window.Width == 0 {
		c.Window.Width = 1080
	}
	if c.Window.Height == 0 {
		c.Window.Height = 600
	}
	if c.Window.Backend == "" {
		c.Window.Backend = BackendGL
	}
	if c.Window.VSync == nil {
		c.Window.VSync = common.Ptr(true)
	}
	if bg, err := common.HexColor(c.Renderer.Background); err == nil {
		c.Renderer.ClearColor = bg
	}
	if c.Renderer.ClearColor == [4]float32{} {
		c.Renderer.ClearColor = [4]float32{0, 0, 0, 1}
	}
	if c.Renderer.MaxLights == 0 {
		c.Renderer.MaxLights = light.MaxLights
	}
	if c.Renderer.ShadowBias == 0 {
		c.Renderer.ShadowBias = light.DefaultShadowBias
	}
	if c.Renderer.Animate == nil {
		c.Renderer.Animate = common.Ptr(true)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	lights := make([]light.Config, len(c.Lights))
	for i, lc := range c.Lights {
		lights[i] = lc.WithDefaults()
	}
	c.Lights = lights
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	switch c.Window.Backend {
	case BackendGL, BackendWebGPU:
	default:
		return fmt.Errorf("unknown backend %q", c.Window.Backend)
	}
	if c.Renderer.MaxLights < 0 || c.Renderer.MaxLights > light.MaxLights {
		return fmt.Errorf("max_lights %d outside 0..%d", c.Renderer.MaxLights, light.MaxLights)
	}
	if c.Renderer.Background != "" {
		if _, err := common.HexColor(c.Renderer.Background); err != nil {
			return fmt.Errorf("background: %w", err)
		}
	}
	if c.Renderer.FrameLimit < 0 {
		return fmt.Errorf("negative frame limit %v", c.Renderer.FrameLimit)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	for i, lc := range c.Lights {
		if err := lc.Validate(); err != nil {
			return fmt.Errorf("lights[%d]: %w", i, err)
		}
	}
	return nil
}

// Decode reads a configuration in the given format, applies defaults and validates it.
//
// Parameters:
//   - r: the encoded configuration
//   - format: FormatTOML or FormatYAML
//
// Returns:
//   - Config: the configuration, defaults applied
//   - error: a decode or validation error
func Decode(r io.Reader, format Format) (Config, error) {
	var c Config
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return Config{}, fmt.Errorf("decode toml: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads a configuration file, choosing the decoder by extension.
//
// Parameters:
//   - path: a .toml, .yaml or .yml file
//
// Returns:
//   - Config: the configuration, defaults applied
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	c, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Encode writes c in the given format.
func Encode(w io.Writer, c Config, format Format) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(c)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ApplyLogging sets the level of the engine logger.
func (c Config) ApplyLogging() error {
	return common.SetLogLevel(c.Log.Level)
}

// RendererOptions returns the renderer options this configuration selects.
func (c Config) RendererOptions() []renderer.RendererBuilderOption {
	return []renderer.RendererBuilderOption{
		renderer.WithClearColor(mgl32.Vec4(c.Renderer.ClearColor)),
		renderer.WithMaxLights(c.Renderer.MaxLights),
		renderer.WithShadowBias(c.Renderer.ShadowBias),
	}
}

// BuildLights creates one light per light record.
//
// Returns:
//   - []light.Light: the lights, in file order
//   - error: the first invalid record
func (c Config) BuildLights() ([]light.Light, error) {
	lights := make([]light.Light, 0, len(c.Lights))
	for i, lc := range c.Lights {
		l, err := light.FromConfig(lc)
		if err != nil {
			return nil, fmt.Errorf("lights[%d]: %w", i, err)
		}
		lights = append(lights, l)
	}
	return lights, nil
}

// ApplyLights updates existing lights from a reloaded configuration. Lights are matched by
// index; records without a light and lights without a record are left alone.
//
// Parameters:
//   - lights: the lights to update
//
// Returns:
//   - int: the number of lights updated
func (c Config) ApplyLights(lights []light.Light) int {
	n := min(len(lights), len(c.Lights))
	for i := 0; i < n; i++ {
		light.Apply(lights[i], c.Lights[i])
	}
	return n
}
