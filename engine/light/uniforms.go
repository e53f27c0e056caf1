package light

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxLights is the number of lights the Lights block holds. Enabled lights past it are ignored.
const MaxLights = shader.MaxLights

// MaxShadowSlots is the number of shadow maps the main pass can sample.
const MaxShadowSlots = shader.MaxShadowMaps

// Field names of the Lights uniform block.
const (
	FieldPositions  = "light_positions_or_vectors"
	FieldColors     = "light_colors"
	FieldParams     = "light_params"
	FieldDirections = "light_directions"
	FieldLightSpace = "light_space"
	FieldCount      = "light_count"
	FieldShadowBias = "shadow_bias"
)

// NewUniformValues creates a zeroed Lights block value bag with no lights.
//
// Parameters:
//   - shadowBias: the depth bias applied to shadow comparisons
//
// Returns:
//   - map[string]any: the value bag Bind writes into
func NewUniformValues(shadowBias float32) map[string]any {
	params := make([]mgl32.Vec4, MaxLights)
	for i := range params {
		params[i] = mgl32.Vec4{0, -1, 0, 0}
	}
	return map[string]any{
		FieldPositions:  make([]mgl32.Vec4, MaxLights),
		FieldColors:     make([]mgl32.Vec4, MaxLights),
		FieldParams:     params,
		FieldDirections: make([]mgl32.Vec4, MaxLights),
		FieldLightSpace: make([]mgl32.Mat4, MaxShadowSlots),
		FieldCount:      int32(0),
		FieldShadowBias: shadowBias,
	}
}

// PackLights binds every enabled light, in order, into a new value bag and sets the light count.
//
// Parameters:
//   - lights: the scene lights
//   - shadowBias: the depth bias applied to shadow comparisons
//
// Returns:
//   - map[string]any: the Lights block values
//   - error: the first Bind error
func PackLights(lights []Light, shadowBias float32) (map[string]any, error) {
	values := NewUniformValues(shadowBias)
	n := 0
	for _, l := range lights {
		if !l.Enabled() {
			continue
		}
		if n == MaxLights {
			common.LogWarn("too many lights, ignoring the rest", "max", MaxLights, "lights", len(lights))
			break
		}
		if err := l.Bind(values, n); err != nil {
			return nil, err
		}
		n++
	}
	values[FieldCount] = int32(n)
	return values, nil
}

func (l *lightImpl) Bind(values map[string]any, index int) error {
	if index < 0 || index >= MaxLights {
		return fmt.Errorf("light index %d out of range [0, %d)", index, MaxLights)
	}
	positions, ok1 := values[FieldPositions].([]mgl32.Vec4)
	colors, ok2 := values[FieldColors].([]mgl32.Vec4)
	params, ok3 := values[FieldParams].([]mgl32.Vec4)
	directions, ok4 := values[FieldDirections].([]mgl32.Vec4)
	space, ok5 := values[FieldLightSpace].([]mgl32.Mat4)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || len(positions) < MaxLights || len(space) < MaxShadowSlots {
		return fmt.Errorf("light values were not created by NewUniformValues")
	}

	var matrices []mgl32.Mat4
	if l.castsShadows {
		l.mu.RLock()
		focus := l.focus
		l.mu.RUnlock()
		matrices = l.LightSpaceMatrices(focus)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	attenuation := l.attenuation
	if l.lightType == LightTypeDirectional {
		positions[index] = l.direction.Mul(-1).Vec4(0)
		attenuation = 0
	} else {
		positions[index] = l.position.Vec4(1)
	}
	colors[index] = l.color.Mul(l.intensity).Vec4(1)
	directions[index] = l.direction.Vec4(cosDeg(l.outerDeg))

	slot, count := -1, 0
	if l.castsShadows && l.shadowSlot >= 0 && l.shadowSlot+len(matrices) <= MaxShadowSlots {
		slot, count = l.shadowSlot, len(matrices)
		copy(space[slot:], matrices)
	}
	params[index] = mgl32.Vec4{attenuation, float32(slot), float32(count), float32(l.lightType)}
	return nil
}
