package passes

import (
	_ "embed"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/onyx-go/engine/resources"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/wireframe.wgsl
var wireframeSource string

// WireframePassName keys the wireframe pipeline and bindings.
const WireframePassName = "wireframe"

// instanceRange ties one debug instance to its index span.
type instanceRange struct {
	firstIndex uint32
	indexCount uint32
}

// wireframePass drains the immediate-mode draw event bus each frame,
// tessellates the shapes into its own vertex, index and instance buffers
// and draws them as line lists. The buffers reset every frame; a frame
// with no events draws nothing.
type wireframePass struct {
	vertices  []DebugVertex
	indices   []uint32
	instances []DebugInstance
	ranges    []instanceRange

	verticesGpu  graphics.GpuBuffer
	indicesGpu   graphics.GpuBuffer
	instancesGpu graphics.GpuBuffer

	vertexShader, fragmentShader shader.Shader
}

var _ Pass = &wireframePass{}

// NewWireframePass creates the wireframe pass.
//
// Returns:
//   - Pass: the pass
func NewWireframePass() Pass {
	return &wireframePass{
		verticesGpu:  graphics.GpuBuffer{Label: "debug_vertices", Usage: wgpu.BufferUsageStorage},
		indicesGpu:   graphics.GpuBuffer{Label: "debug_indices", Usage: wgpu.BufferUsageIndex},
		instancesGpu: graphics.GpuBuffer{Label: "debug_instances", Usage: wgpu.BufferUsageStorage},
	}
}

func (p *wireframePass) Name() string {
	return WireframePassName
}

func (p *wireframePass) MeshFlags() graphics.MeshFlags {
	return graphics.MeshFlagsWireframe
}

func (p *wireframePass) DrawCommandsType() graphics.DrawCommandType {
	return graphics.DrawCommandPerMeshlet
}

func (p *wireframePass) IsActive(ctx *Context) bool {
	return ctx.DrawEvents != nil
}

func (p *wireframePass) Init(ctx *Context) error {
	var err error
	p.vertexShader, err = shader.NewShader(WireframePassName+"_vs", shader.ShaderTypeVertex, wireframeSource, "")
	if err != nil {
		return err
	}
	p.fragmentShader, err = shader.NewShader(WireframePassName+"_fs", shader.ShaderTypeFragment, wireframeSource, "")
	return err
}

// BuildFrame tessellates a frame's draw events into the pass's CPU
// buffers, replacing the previous frame's contents.
//
// Parameters:
//   - events: the frame's draw events
//
// Returns:
//   - int: the instance count for the frame
func (p *wireframePass) BuildFrame(events []resources.DrawEvent) int {
	p.vertices = p.vertices[:0]
	p.indices = p.indices[:0]
	p.instances = p.instances[:0]
	p.ranges = p.ranges[:0]

	for _, e := range events {
		firstIndex := uint32(len(p.indices))
		var instance DebugInstance
		var count int
		p.vertices, p.indices, instance, count = TessellateDrawEvent(e, p.vertices, p.indices)
		if count == 0 {
			continue
		}
		p.instances = append(p.instances, instance)
		p.ranges = append(p.ranges, instanceRange{firstIndex: firstIndex, indexCount: uint32(count)})
	}
	return len(p.instances)
}

// InstanceCount returns the number of instances built for the current frame.
//
// Returns:
//   - int: the instance count
func (p *wireframePass) InstanceCount() int {
	return len(p.instances)
}

func (p *wireframePass) Update(ctx *Context, surfaceView *wgpu.TextureView, encoder *wgpu.CommandEncoder) error {
	events := ctx.DrawEvents.DrainFrame()
	if p.BuildFrame(events) == 0 {
		return nil
	}
	if surfaceView == nil || ctx.Depth.View == nil {
		return nil
	}

	device := ctx.Renderer.Device()
	queue := ctx.Renderer.Queue()
	p.verticesGpu.MarkDirty()
	p.indicesGpu.MarkDirty()
	p.instancesGpu.MarkDirty()
	p.verticesGpu.Upload(device, queue, common.SliceToBytes(p.vertices))
	p.indicesGpu.Upload(device, queue, common.SliceToBytes(p.indices))
	p.instancesGpu.Upload(device, queue, common.SliceToBytes(p.instances))
	if p.verticesGpu.Buffer() == nil || p.indicesGpu.Buffer() == nil || p.instancesGpu.Buffer() == nil {
		return nil
	}

	b := ctx.Bindings(WireframePassName)
	if err := uniformEntry(b, 0, 0, ctx.Buffers.ConstantGpu.Buffer(), wgpu.ShaderStageVertex); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 1, p.verticesGpu.Buffer(), wgpu.ShaderStageVertex, true); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 2, p.instancesGpu.Buffer(), wgpu.ShaderStageVertex, true); err != nil {
		return err
	}
	renderPipeline, err := ensureRenderPipeline(ctx, WireframePassName, b,
		pipeline.WithVertexShader(p.vertexShader),
		pipeline.WithFragmentShader(p.fragmentShader),
		pipeline.WithTopology(wgpu.PrimitiveTopologyLineList),
		pipeline.WithDepthWriteEnabled(false),
	)
	if err != nil || renderPipeline == nil {
		return err
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: WireframePassName,
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    surfaceView,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            ctx.Depth.View,
			DepthLoadOp:     wgpu.LoadOpLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	pass.SetPipeline(renderPipeline)
	for i, group := range b.BindGroups() {
		pass.SetBindGroup(uint32(i), group, nil)
	}
	pass.SetIndexBuffer(p.indicesGpu.Buffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	for i, r := range p.ranges {
		pass.DrawIndexed(r.indexCount, 1, r.firstIndex, 0, uint32(i))
	}
	pass.End()
	return nil
}
