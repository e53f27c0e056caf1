package light

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithType is an option builder that sets the kind of light. Defaults to LightTypePoint.
//
// Parameters:
//   - lightType: directional, point or spot
//
// Returns:
//   - LightBuilderOption: a function that applies the type option to a lightImpl
func WithType(lightType LightType) LightBuilderOption {
	return func(l *lightImpl) {
		l.lightType = lightType
	}
}

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = mgl32.Vec3{x, y, z}
	}
}

// WithDirection is an option builder that sets the direction of the light.
// The direction is normalized before storing.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.direction = normalize(mgl32.Vec3{x, y, z})
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightImpl
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = mgl32.Vec3{r, g, b}
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithAttenuation is an option builder that sets k in the falloff 1 / (1 + k * d^2).
func WithAttenuation(k float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.attenuation = k
	}
}

// WithSize is an option builder that sets the attenuation from the apparent size of the light:
// a light of size s falls off with k = 1 / s. Non-positive sizes disable falloff.
//
// Parameters:
//   - size: the light size in world units
//
// Returns:
//   - LightBuilderOption: a function that applies the attenuation to a lightImpl
func WithSize(size float32) LightBuilderOption {
	return func(l *lightImpl) {
		if size <= 0 {
			l.attenuation = 0
			return
		}
		l.attenuation = 1 / size
	}
}

// WithRange is an option builder that sets the far plane of point and spot light shadow
// projections.
func WithRange(lightRange float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.lightRange = lightRange
	}
}

// WithSpotCone is an option builder that sets the inner and outer cone half-angles
// for spot lights, in degrees.
//
// Parameters:
//   - innerDeg: inner cone half-angle in degrees
//   - outerDeg: outer cone half-angle in degrees
//
// Returns:
//   - LightBuilderOption: a function that applies the spot cone option to a lightImpl
func WithSpotCone(innerDeg, outerDeg float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.innerDeg = innerDeg
		l.outerDeg = outerDeg
	}
}

// WithEnabled is an option builder that sets whether the light contributes to shading.
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.enabled = enabled
	}
}

// WithCastsShadows is an option builder that sets whether the light renders shadow maps.
func WithCastsShadows(castsShadows bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.castsShadows = castsShadows
	}
}

// WithShadowResolution is an option builder that sets the width and height of each shadow map.
// Defaults to ShadowMapResolution.
func WithShadowResolution(texels int) LightBuilderOption {
	return func(l *lightImpl) {
		if texels > 0 {
			l.shadowResolution = texels
		}
	}
}

// WithShadowExtent is an option builder that sets the half-size of a directional light's
// orthographic shadow frustum and the near plane of every shadow projection.
//
// Parameters:
//   - halfExtent: half-size of the frustum in world units
//   - near: near plane distance
//
// Returns:
//   - LightBuilderOption: a function that applies the extent option to a lightImpl
func WithShadowExtent(halfExtent, near float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.shadowHalfExtent = halfExtent
		l.shadowNear = near
	}
}

// normalize normalizes a vector, returning the zero vector for zero length.
func normalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return mgl32.Vec3{}
	}
	return v.Normalize()
}

// cosDeg converts an angle in degrees to its cosine.
func cosDeg(deg float32) float32 {
	return math32.Cos(mgl32.DegToRad(deg))
}

func abs(v float32) float32 {
	return math32.Abs(v)
}
