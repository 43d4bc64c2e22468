// package texture packs 2-D textures into a bounded set of layered array
// textures so the whole material set binds through a fixed number of slots.
// Layer assignment is stable for a texture's lifetime; shaders address
// texels through the TextureInfo records in the textures arena.
package texture

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// MaxTextureAtlasCount bounds the number of array textures the manager
	// may create per format class.
	MaxTextureAtlasCount = 8

	// AtlasLayerCount is the number of layers per array texture.
	AtlasLayerCount = 16

	// AtlasDimension is the texture size Allocate assumes when the staging
	// data carries no dimensions.
	AtlasDimension = 4096
)

// AtlasFormat selects an atlas format class.
type AtlasFormat int

const (
	// AtlasFormatColor is Rgba8Unorm, used for material textures and the
	// visibility render targets.
	AtlasFormatColor AtlasFormat = iota

	// AtlasFormatDepth is Depth32Float, used for depth render targets.
	AtlasFormatDepth
)

// wgpuFormat maps an AtlasFormat to its wgpu texture format.
func (f AtlasFormat) wgpuFormat() wgpu.TextureFormat {
	if f == AtlasFormatDepth {
		return wgpu.TextureFormatDepth32Float
	}
	return wgpu.TextureFormatRGBA8Unorm
}

// atlas is one layered array texture with per-layer occupancy.
type atlas struct {
	format     AtlasFormat
	width      uint32
	height     uint32
	layersUsed [AtlasLayerCount]bool

	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (a *atlas) freeLayer() int {
	for i := range a.layersUsed {
		if !a.layersUsed[i] {
			return i
		}
	}
	return -1
}

// allocation records a texture's stable placement.
type allocation struct {
	atlasIndex int
	layerIndex int
	width      uint32
	height     uint32
}

// atlasManager is the implementation of the AtlasManager interface.
type atlasManager struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	atlases     []*atlas
	allocations map[common.Uid]allocation

	defaultSampler *wgpu.Sampler
	depthSampler   *wgpu.Sampler

	// bindingArraySupported is true when the adapter exposes
	// TEXTURE_BINDING_ARRAY, letting all atlases bind as one array-of-views.
	bindingArraySupported bool
}

// AtlasManager owns the bounded atlas set, the default filtering sampler and
// the depth comparison sampler. Allocation picks the first atlas of matching
// format with a free layer; destruction releases the layer. A texture's
// (atlas, layer) pair never changes while the texture lives.
type AtlasManager interface {
	// Allocate places a texture into an atlas and returns its placement
	// record. When pixel data is provided it is uploaded to the assigned
	// layer. Fails when every atlas of the format is at capacity.
	//
	// Parameters:
	//   - id: the texture id
	//   - format: the atlas format class
	//   - staging: the texture pixels and dimensions; Pixels may be nil for
	//     render targets
	//
	// Returns:
	//   - graphics.TextureInfo: the stable placement record
	//   - error: an error when capacity is exhausted
	Allocate(id common.Uid, format AtlasFormat, staging *common.TextureStagingData) (graphics.TextureInfo, error)

	// Free releases the layer owned by a texture id. Freeing an unknown id
	// is a no-op.
	//
	// Parameters:
	//   - id: the texture id
	//
	// Returns:
	//   - bool: true when a layer was released
	Free(id common.Uid) bool

	// Info returns the placement record for a live texture.
	//
	// Parameters:
	//   - id: the texture id
	//
	// Returns:
	//   - graphics.TextureInfo: the placement record
	//   - bool: false when the id is unknown
	Info(id common.Uid) (graphics.TextureInfo, bool)

	// AtlasViews returns one texture view per live atlas, in atlas index
	// order, for bind group construction.
	//
	// Returns:
	//   - []*wgpu.TextureView: the atlas views
	AtlasViews() []*wgpu.TextureView

	// DefaultSampler returns the shared filtering sampler.
	//
	// Returns:
	//   - *wgpu.Sampler: the sampler, or nil before GPU init
	DefaultSampler() *wgpu.Sampler

	// DepthSampler returns the shared comparison sampler.
	//
	// Returns:
	//   - *wgpu.Sampler: the sampler, or nil before GPU init
	DepthSampler() *wgpu.Sampler

	// BindingArraySupported reports whether atlases can bind as a single
	// texture array binding; when false callers bind each atlas to an
	// individual slot up to MaxTextureAtlasCount.
	//
	// Returns:
	//   - bool: the feature flag
	BindingArraySupported() bool

	// Release frees every GPU texture and sampler.
	Release()
}

var _ AtlasManager = &atlasManager{}

// AtlasManagerOption is a functional option applied during NewAtlasManager.
type AtlasManagerOption func(*atlasManager)

// WithDevice wires the GPU device and queue used for texture creation and
// pixel upload. Without a device the manager still tracks placements, which
// the tests rely on.
//
// Parameters:
//   - device: the wgpu device
//   - queue: the wgpu queue
//
// Returns:
//   - AtlasManagerOption: a function that applies the device option
func WithDevice(device *wgpu.Device, queue *wgpu.Queue) AtlasManagerOption {
	return func(m *atlasManager) {
		m.device = device
		m.queue = queue
	}
}

// WithBindingArraySupport records whether the adapter supports binding the
// atlas set as one texture array.
//
// Parameters:
//   - supported: the feature flag from the adapter
//
// Returns:
//   - AtlasManagerOption: a function that applies the support option
func WithBindingArraySupport(supported bool) AtlasManagerOption {
	return func(m *atlasManager) {
		m.bindingArraySupported = supported
	}
}

// NewAtlasManager creates an AtlasManager and, when a device is present, its
// default and depth samplers.
//
// Parameters:
//   - opts: functional options
//
// Returns:
//   - AtlasManager: the new manager
func NewAtlasManager(opts ...AtlasManagerOption) AtlasManager {
	m := &atlasManager{
		allocations: make(map[common.Uid]allocation),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.device != nil {
		m.createSamplers()
	}
	return m
}

func (m *atlasManager) createSamplers() {
	var err error
	m.defaultSampler, err = m.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "atlas_default_sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		log.Printf("[Atlas] default sampler creation failed: %v", err)
	}
	m.depthSampler, err = m.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "atlas_depth_sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		Compare:       wgpu.CompareFunctionLessEqual,
		MaxAnisotropy: 1,
	})
	if err != nil {
		log.Printf("[Atlas] depth sampler creation failed: %v", err)
	}
}

// createAtlas appends a new array texture of the given format class, sized
// to the requested dimensions for every format; Allocate requests a square
// atlas on the larger edge of the texture that did not fit elsewhere.
func (m *atlasManager) createAtlas(format AtlasFormat, width, height uint32) (*atlas, error) {
	count := 0
	for _, a := range m.atlases {
		if a.format == format {
			count++
		}
	}
	if count >= MaxTextureAtlasCount {
		return nil, fmt.Errorf("atlas capacity exhausted: %d atlases of format %d", count, format)
	}
	a := &atlas{format: format, width: width, height: height}
	if m.device != nil {
		tex, err := m.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "texture_atlas",
			Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: AtlasLayerCount},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        format.wgpuFormat(),
			Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return nil, fmt.Errorf("atlas texture creation failed: %w", err)
		}
		a.texture = tex
		a.view, err = tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           "texture_atlas_view",
			Format:          format.wgpuFormat(),
			Dimension:       wgpu.TextureViewDimension2DArray,
			MipLevelCount:   1,
			ArrayLayerCount: AtlasLayerCount,
		})
		if err != nil {
			return nil, fmt.Errorf("atlas view creation failed: %w", err)
		}
	}
	m.atlases = append(m.atlases, a)
	return a, nil
}

func (m *atlasManager) Allocate(id common.Uid, format AtlasFormat, staging *common.TextureStagingData) (graphics.TextureInfo, error) {
	if existing, ok := m.allocations[id]; ok {
		// stable placement: re-allocation of a live id keeps its layer
		return m.infoFromAllocation(existing), nil
	}

	width := uint32(AtlasDimension)
	height := uint32(AtlasDimension)
	if staging != nil && staging.Width > 0 && staging.Height > 0 {
		width = staging.Width
		height = staging.Height
	}

	var target *atlas
	targetIndex := -1
	for i, a := range m.atlases {
		if a.format == format && a.width >= width && a.height >= height && a.freeLayer() >= 0 {
			target = a
			targetIndex = i
			break
		}
	}
	if target == nil {
		a, err := m.createAtlas(format, maxU32(width, height), maxU32(width, height))
		if err != nil {
			log.Printf("[Atlas] texture %s rejected: %v", id, err)
			return graphics.TextureInfo{}, err
		}
		target = a
		targetIndex = len(m.atlases) - 1
	}

	layer := target.freeLayer()
	target.layersUsed[layer] = true
	alloc := allocation{atlasIndex: targetIndex, layerIndex: layer, width: width, height: height}
	m.allocations[id] = alloc

	if staging != nil && len(staging.Pixels) > 0 && m.queue != nil && target.texture != nil {
		m.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  target.texture,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: uint32(layer)},
				Aspect:   wgpu.TextureAspectAll,
			},
			staging.Pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  staging.Width * 4,
				RowsPerImage: staging.Height,
			},
			&wgpu.Extent3D{Width: staging.Width, Height: staging.Height, DepthOrArrayLayers: 1},
		)
	}
	return m.infoFromAllocation(alloc), nil
}

func (m *atlasManager) infoFromAllocation(a allocation) graphics.TextureInfo {
	atlasWidth := float32(m.atlases[a.atlasIndex].width)
	atlasHeight := float32(m.atlases[a.atlasIndex].height)
	return graphics.TextureInfo{
		TextureIndex: uint32(a.atlasIndex),
		LayerIndex:   uint32(a.layerIndex),
		Width:        float32(a.width),
		Height:       float32(a.height),
		Area:         [4]float32{0, 0, float32(a.width) / atlasWidth, float32(a.height) / atlasHeight},
	}
}

func (m *atlasManager) Free(id common.Uid) bool {
	alloc, ok := m.allocations[id]
	if !ok {
		return false
	}
	delete(m.allocations, id)
	m.atlases[alloc.atlasIndex].layersUsed[alloc.layerIndex] = false
	return true
}

func (m *atlasManager) Info(id common.Uid) (graphics.TextureInfo, bool) {
	alloc, ok := m.allocations[id]
	if !ok {
		return graphics.TextureInfo{}, false
	}
	return m.infoFromAllocation(alloc), true
}

func (m *atlasManager) AtlasViews() []*wgpu.TextureView {
	views := make([]*wgpu.TextureView, 0, len(m.atlases))
	for _, a := range m.atlases {
		views = append(views, a.view)
	}
	return views
}

func (m *atlasManager) DefaultSampler() *wgpu.Sampler {
	return m.defaultSampler
}

func (m *atlasManager) DepthSampler() *wgpu.Sampler {
	return m.depthSampler
}

func (m *atlasManager) BindingArraySupported() bool {
	return m.bindingArraySupported
}

func (m *atlasManager) Release() {
	for _, a := range m.atlases {
		if a.view != nil {
			a.view.Release()
		}
		if a.texture != nil {
			a.texture.Release()
		}
	}
	m.atlases = nil
	m.allocations = make(map[common.Uid]allocation)
	if m.defaultSampler != nil {
		m.defaultSampler.Release()
		m.defaultSampler = nil
	}
	if m.depthSampler != nil {
		m.depthSampler.Release()
		m.depthSampler = nil
	}
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
