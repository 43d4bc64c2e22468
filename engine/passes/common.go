package passes

import (
	"github.com/Carmen-Shannon/onyx-go/engine/binding"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// storageEntry pushes a read-only or read-write storage buffer entry,
// funneling every pass through the same options.
func storageEntry(b binding.Builder, group, index int, buffer *wgpu.Buffer, stage wgpu.ShaderStage, readOnly bool) error {
	return b.AddBuffer(group, index, buffer, binding.BufferOptions{
		Stage:     stage,
		IsStorage: true,
		ReadOnly:  readOnly,
	})
}

// uniformEntry pushes a uniform buffer entry.
func uniformEntry(b binding.Builder, group, index int, buffer *wgpu.Buffer, stage wgpu.ShaderStage) error {
	return b.AddBuffer(group, index, buffer, binding.BufferOptions{Stage: stage})
}

// beginComputePass materializes a pass's bindings, registers the compute
// pipeline against the materialized layouts on first use (and again after
// invalidation), then opens a compute pass with pipeline and bind groups
// set. Returns nil without error when the GPU context is absent.
func beginComputePass(ctx *Context, encoder *wgpu.CommandEncoder, passName string, computeShader shader.Shader) (*wgpu.ComputePassEncoder, error) {
	device := ctx.Renderer.Device()
	if device == nil || encoder == nil {
		return nil, nil
	}
	b := ctx.Bindings(passName)
	if err := b.Build(device); err != nil {
		return nil, err
	}

	// pipeline layouts must match the bind groups exactly, so registration
	// waits for the first materialized layout set
	err := ctx.Renderer.RegisterPipelines(pipeline.NewPipeline(
		passName,
		pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(computeShader),
		pipeline.WithBindGroupLayouts(b.Layouts()...),
	))
	if err != nil {
		return nil, err
	}
	p := ctx.Renderer.Pipeline(passName)
	computePipeline, ok := p.Pipeline().(*wgpu.ComputePipeline)
	if !ok || computePipeline == nil {
		return nil, nil
	}

	pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: passName})
	pass.SetPipeline(computePipeline)
	for i, group := range b.BindGroups() {
		pass.SetBindGroup(uint32(i), group, nil)
	}
	return pass, nil
}

// ensureRenderPipeline materializes a pass's bindings and registers its
// render pipeline against the resulting layouts, returning the GPU pipeline
// once it exists. The extra options carry the pass's depth, blend, cull and
// target format configuration.
func ensureRenderPipeline(ctx *Context, passName string, b binding.Builder, opts ...pipeline.PipelineBuilderOption) (*wgpu.RenderPipeline, error) {
	device := ctx.Renderer.Device()
	if device == nil {
		return nil, nil
	}
	if err := b.Build(device); err != nil {
		return nil, err
	}
	opts = append(opts, pipeline.WithBindGroupLayouts(b.Layouts()...))
	err := ctx.Renderer.RegisterPipelines(pipeline.NewPipeline(passName, pipeline.PipelineTypeRender, opts...))
	if err != nil {
		return nil, err
	}
	p := ctx.Renderer.Pipeline(passName)
	renderPipeline, ok := p.Pipeline().(*wgpu.RenderPipeline)
	if !ok {
		return nil, nil
	}
	return renderPipeline, nil
}
