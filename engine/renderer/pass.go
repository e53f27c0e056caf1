package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/entity"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/light"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-tiny/engine/texture"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
	"github.com/go-gl/mathgl/mgl32"
)

// frame is the per-flush state shared by every draw of one pass.
type frame struct {
	globals  map[string]any
	lights   map[string]any
	shadows  map[string]gpu.Texture
	set      map[string]bool
	drawn    map[uint64]bool
	entities []entity.Entity
}

func newFrame(entities []entity.Entity) *frame {
	return &frame{
		set:      make(map[string]bool),
		shadows:  make(map[string]gpu.Texture),
		drawn:    make(map[uint64]bool, len(entities)),
		entities: entities,
	}
}

const msgSkipped = "entity skipped"

// aborts reports whether an error invalidates the whole flush rather than one entity.
func aborts(err error) bool {
	return errors.Is(err, gpu.ErrLayout) || errors.Is(err, gpu.ErrContextMismatch)
}

// activeLights returns the enabled lights the Lights block has room for, in order.
func (r *renderer) activeLights(lights []light.Light) []light.Light {
	out := make([]light.Light, 0, len(lights))
	for _, l := range lights {
		if l == nil || !l.Enabled() {
			continue
		}
		if len(out) == r.maxLights {
			break
		}
		out = append(out, l)
	}
	return out
}

func (r *renderer) focus() mgl32.Vec3 {
	r.mu.Lock()
	f := r.shadowFocus
	r.mu.Unlock()
	if f != nil {
		return *f
	}
	return r.Camera().At()
}

func (r *renderer) ShadowMapPass(ctx gpu.Context, lights []light.Light) error {
	entities := r.Entities()
	focus := r.focus()

	slot := 0
	for _, l := range r.activeLights(lights) {
		n := l.ShadowMapCount()
		if n == 0 {
			l.SetShadowSlot(-1)
			continue
		}
		if slot+n > light.MaxShadowSlots {
			common.LogWarn("no shadow map slots left, light drawn unshadowed",
				"type", l.Type(), "needs", n, "free", light.MaxShadowSlots-slot)
			l.SetShadowSlot(-1)
			continue
		}
		l.SetShadowSlot(slot)
		slot += n

		if l.State() != light.StateActive {
			l.Initialize(r.shadows)
		}
		matrices := l.LightSpaceMatrices(focus)
		for i, m := range matrices {
			if err := r.shadowFace(ctx, l, i, m, entities); err != nil {
				return err
			}
		}
	}
	return nil
}

// shadowFace renders the depth of every enabled entity into one shadow map of l.
func (r *renderer) shadowFace(ctx gpu.Context, l light.Light, index int, lightSpace mgl32.Mat4, entities []entity.Entity) error {
	if err := l.Activate(ctx, index); err != nil {
		common.LogWarn("shadow map unavailable", "type", l.Type(), "index", index, "err", err)
		return nil
	}
	defer func() {
		if err := l.Deactivate(ctx); err != nil {
			common.LogError("shadow map deactivate", "type", l.Type(), "err", err)
		}
	}()

	blocks, err := r.compiler.Blocks(r.depthShader)
	if err != nil {
		return err
	}
	f := newFrame(entities)
	for _, b := range blocks {
		if b.Name() == shader.BlockShadowPass {
			if err := b.SetField(FieldLightSpace, lightSpace); err != nil {
				return fmt.Errorf("shadow pass: %w", err)
			}
		}
	}
	return r.drawAll(ctx, f, r.depthShader)
}

func (r *renderer) Flush(ctx gpu.Context, lights []light.Light, clearEntities bool, alternative shader.Shader) error {
	if alternative == nil {
		if err := r.ShadowMapPass(ctx, lights); err != nil {
			return err
		}
	}

	cam := r.Camera()
	w, h := ctx.Size()
	r.mu.Lock()
	resized := r.lastSize != [2]int{w, h}
	r.lastSize = [2]int{w, h}
	time, delta, animating, bias := r.time, r.delta, r.animating, r.shadowBias
	r.mu.Unlock()
	if !cam.Initialized() {
		cam.Initialize(w, h)
	} else if resized {
		cam.Resize(w, h)
	}

	active := r.activeLights(lights)
	lightValues, err := light.PackLights(active, bias)
	if err != nil {
		return err
	}

	f := newFrame(r.Entities())
	f.globals = map[string]any{
		FieldAnimationTime:  time,
		FieldAnimationDelta: delta,
		FieldAnimate:        animating,
	}
	cam.Bind(f.globals)
	f.lights = lightValues
	for _, l := range active {
		first := l.ShadowSlot()
		if first < 0 {
			continue
		}
		for i, sm := range l.ShadowMaps() {
			if target, ok := r.shadows.Lookup(sm, ctx.ID()); ok {
				f.shadows[shader.ShadowMapName(first+i)] = target.Depth
			}
		}
	}

	if err := r.drawAll(ctx, f, alternative); err != nil {
		return err
	}
	r.prune(f.drawn)
	if clearEntities {
		r.Clear()
	}
	return nil
}

// drawAll draws every enabled entity of f, skipping the ones that fail.
func (r *renderer) drawAll(ctx gpu.Context, f *frame, override shader.Shader) error {
	for _, e := range f.entities {
		if !e.Enabled() {
			continue
		}
		err := r.drawEntity(ctx, e, override, f)
		switch {
		case err == nil:
			r.recovered(e, msgSkipped)
		case aborts(err):
			return fmt.Errorf("draw %q: %w", e.Label(), err)
		default:
			r.report(common.LogWarn, e, msgSkipped, err)
		}
	}
	return nil
}

func (r *renderer) drawEntity(ctx gpu.Context, e entity.Entity, override shader.Shader, f *frame) error {
	mat := e.Material()
	s := override
	if s == nil {
		s = mat.Shader()
	}

	prog, err := r.compiler.Resolve(ctx, s)
	if err != nil {
		return err
	}
	blocks, err := r.compiler.Blocks(s)
	if err != nil {
		return err
	}
	inst, err := r.shapes.Resolve(ctx, e.Shape())
	if err != nil {
		return err
	}
	gen := e.Generation()
	transforms := e.GlobalTransforms()

	var model ubo.Block
	for _, b := range blocks {
		if b.Name() == shader.BlockModel {
			model = b
			continue
		}
		if err := r.fillBlock(b, mat, f); err != nil {
			return fmt.Errorf("block %q: %w", b.Name(), err)
		}
		if err := r.registry.Bind(ctx, b); err != nil {
			return err
		}
	}

	textures := mat.Textures()
	for _, t := range s.Textures() {
		if t.Depth {
			ctx.BindTexture(t.Unit, f.shadows[t.Name])
			continue
		}
		r.bindTexture(ctx, e, t, textures[t.Name])
	}

	inputs := make([]gpu.AttributeBinding, 0, len(s.Attributes()))
	for _, a := range s.Attributes() {
		inputs = append(inputs, gpu.AttributeBinding{Name: a.Name, Location: a.Location, Components: a.Components, Instanced: a.Instanced})
	}
	bindings, missing := inst.Bindings(inputs)
	instances := inst.Instances()
	for _, name := range missing {
		if name != FieldModelTransform {
			return fmt.Errorf("shape %q has no %q attribute", e.Shape().Label(), name)
		}
		buf, err := r.instanceBuffer(ctx, e, transforms, gen)
		if err != nil {
			return err
		}
		bindings = append(bindings, gpu.VertexBinding{Name: name, Buffer: buf, Components: 16, Divisor: 1})
		instances = len(transforms)
	}

	cmd := gpu.DrawCommand{
		Program:    prog,
		Attributes: bindings,
		Indices:    inst.Indices(),
		Count:      inst.Count(),
		Instances:  max(instances, 1),
		Topology:   inst.Topology(),
	}
	f.drawn[e.ID()] = true

	if s.Instanced() {
		return ctx.Draw(cmd)
	}
	cmd.Instances = 1
	for _, m := range transforms {
		if model != nil {
			if err := model.SetField(FieldModelTransform, m); err != nil {
				return fmt.Errorf("block %q: %w", model.Name(), err)
			}
			if err := r.registry.Bind(ctx, model); err != nil {
				return err
			}
		}
		if err := ctx.Draw(cmd); err != nil {
			return err
		}
	}
	return nil
}

// fillBlock stages the values of one block: frame blocks once per pass, material blocks per draw.
func (r *renderer) fillBlock(b ubo.Block, mat material.Material, f *frame) error {
	switch b.Name() {
	case shader.BlockGlobals, shader.BlockLights:
		if f.set[b.Name()] {
			return nil
		}
		values := f.globals
		if b.Name() == shader.BlockLights {
			values = f.lights
		}
		if values == nil {
			return nil
		}
		f.set[b.Name()] = true
		return b.Set(values)
	case shader.BlockShadowPass:
		return nil
	}
	values, err := mat.Resolve(b.Layout())
	if err != nil {
		return err
	}
	// Material blocks are shared by name, so a field this material leaves unset must not keep
	// the previous draw's value.
	return b.Replace(values)
}

// bindTexture binds a material texture, starting its load on first use. A texture that is still
// loading or failed leaves the unit unbound so the draw samples the fallback texture.
func (r *renderer) bindTexture(ctx gpu.Context, e entity.Entity, decl shader.TextureDecl, t texture.Texture) {
	if t == nil {
		ctx.BindTexture(decl.Unit, nil)
		return
	}
	if t.State() == texture.StateUnloaded {
		if err := r.textureLoader().Load(t); err != nil {
			r.report(common.LogWarn, e, "texture load not queued", err)
		}
	}
	gt, err := r.textures.Resolve(ctx, t)
	if err != nil {
		if !errors.Is(err, texture.ErrTextureNotReady) {
			r.report(common.LogWarn, e, "drawing without texture", err)
		}
		ctx.BindTexture(decl.Unit, nil)
		return
	}
	ctx.BindTexture(decl.Unit, gt)
}
