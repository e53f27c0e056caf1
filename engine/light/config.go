package light

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Config is the configuration record a light is created from. Zero fields take the defaults of
// DefaultConfig when passed through FromConfig.
type Config struct {
	// Type is "directional", "point" or "spot". Default "point".
	Type string `toml:"type" yaml:"type"`
	// Position is the world-space position. Default (0, 0, 0).
	Position [3]float32 `toml:"position" yaml:"position"`
	// Direction is the direction the light shines in. Default (0, -1, 0).
	Direction [3]float32 `toml:"direction" yaml:"direction"`
	// Color is the RGB color. Default (1, 1, 1).
	Color [3]float32 `toml:"color" yaml:"color"`
	// Intensity multiplies the color. Default 1.
	Intensity float32 `toml:"intensity" yaml:"intensity"`
	// Attenuation is k in 1 / (1 + k * d^2). Default 0, no falloff.
	Attenuation float32 `toml:"attenuation" yaml:"attenuation"`
	// Size sets Attenuation to 1 / Size when positive and Attenuation is zero.
	Size float32 `toml:"size" yaml:"size"`
	// Range is the far plane of point and spot shadow projections. Default 10.
	Range float32 `toml:"range" yaml:"range"`
	// SpotInner and SpotOuter are the spot cone half-angles in degrees. Default 25 and 35.
	SpotInner float32 `toml:"spot_inner" yaml:"spot_inner"`
	SpotOuter float32 `toml:"spot_outer" yaml:"spot_outer"`
	// Disabled turns the light off.
	Disabled bool `toml:"disabled" yaml:"disabled"`
	// CastsShadows enables shadow maps. Default false.
	CastsShadows bool `toml:"casts_shadows" yaml:"casts_shadows"`
	// ShadowResolution is the size of each shadow map in texels. Default ShadowMapResolution.
	ShadowResolution int `toml:"shadow_resolution" yaml:"shadow_resolution"`
}

// DefaultConfig returns the documented defaults: a white point light at the origin with no
// falloff, no shadows, a 10 unit range and a 25/35 degree spot cone.
func DefaultConfig() Config {
	return Config{
		Type:             "point",
		Direction:        [3]float32{0, -1, 0},
		Color:            [3]float32{1, 1, 1},
		Intensity:        1,
		Range:            10,
		SpotInner:        25,
		SpotOuter:        35,
		ShadowResolution: ShadowMapResolution,
	}
}

// WithDefaults fills the zero fields of c from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Type == "" {
		c.Type = d.Type
	}
	if c.Direction == [3]float32{} {
		c.Direction = d.Direction
	}
	if c.Color == [3]float32{} {
		c.Color = d.Color
	}
	if c.Intensity == 0 {
		c.Intensity = d.Intensity
	}
	if c.Attenuation == 0 && c.Size > 0 {
		c.Attenuation = 1 / c.Size
	}
	if c.Range == 0 {
		c.Range = d.Range
	}
	if c.SpotInner == 0 {
		c.SpotInner = d.SpotInner
	}
	if c.SpotOuter == 0 {
		c.SpotOuter = d.SpotOuter
	}
	if c.ShadowResolution == 0 {
		c.ShadowResolution = d.ShadowResolution
	}
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if _, err := ParseLightType(c.Type); err != nil {
		return err
	}
	if c.Range < 0 || c.Attenuation < 0 {
		return fmt.Errorf("light range and attenuation must not be negative")
	}
	if c.SpotInner > c.SpotOuter || c.SpotOuter >= 90 {
		return fmt.Errorf("spot cone %v/%v must satisfy inner <= outer < 90", c.SpotInner, c.SpotOuter)
	}
	if c.ShadowResolution < 0 {
		return fmt.Errorf("negative shadow resolution %d", c.ShadowResolution)
	}
	return nil
}

// FromConfig creates a light from a configuration record, defaults applied.
//
// Parameters:
//   - c: the configuration record
//
// Returns:
//   - Light: the unconfigured light
//   - error: a validation error
func FromConfig(c Config) (Light, error) {
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	t, _ := ParseLightType(c.Type)
	return NewLight(
		WithType(t),
		WithPosition(c.Position[0], c.Position[1], c.Position[2]),
		WithDirection(c.Direction[0], c.Direction[1], c.Direction[2]),
		WithColor(c.Color[0], c.Color[1], c.Color[2]),
		WithIntensity(c.Intensity),
		WithAttenuation(c.Attenuation),
		WithRange(c.Range),
		WithSpotCone(c.SpotInner, c.SpotOuter),
		WithEnabled(!c.Disabled),
		WithCastsShadows(c.CastsShadows),
		WithShadowResolution(c.ShadowResolution),
	), nil
}

// Apply copies the mutable fields of a configuration record onto an existing light, used when a
// configuration file is reloaded.
//
// Parameters:
//   - l: the light to update
//   - c: the configuration record, defaults applied
func Apply(l Light, c Config) {
	c = c.WithDefaults()
	l.SetPosition(mgl32.Vec3(c.Position))
	l.SetDirection(mgl32.Vec3(c.Direction))
	l.SetColor(mgl32.Vec3(c.Color))
	l.SetIntensity(c.Intensity)
	l.SetAttenuation(c.Attenuation)
	l.SetEnabled(!c.Disabled)
}
