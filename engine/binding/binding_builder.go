// package binding provides declarative construction of bind group layouts
// and bind groups from a mixed set of buffer, sampler and texture-array
// entries. Binding identity is cheap to recompute, and some backends demand
// identical layout ordering across frames, so the whole table is rebuilt
// from scratch whenever the single dirty flag is set.
package binding

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// BindingKind identifies the resource class a binding entry holds.
type BindingKind int

const (
	// BindingKindBuffer binds a uniform or storage buffer.
	BindingKindBuffer BindingKind = iota

	// BindingKindDefaultSampler binds the shared filtering sampler.
	BindingKindDefaultSampler

	// BindingKindDepthSampler binds the shared comparison sampler.
	BindingKindDepthSampler

	// BindingKindTextureArray binds a fixed list of texture views, one slot
	// per atlas when TEXTURE_BINDING_ARRAY is unavailable.
	BindingKindTextureArray

	// BindingKindStorageTexture binds a single write-only storage texture.
	BindingKindStorageTexture

	// BindingKindTexture binds a single sampled 2-D texture.
	BindingKindTexture
)

// BufferOptions configures a buffer binding entry.
type BufferOptions struct {
	// Stage is the shader stage visibility bitset.
	Stage wgpu.ShaderStage

	// ReadOnly marks a storage buffer as read-only in the layout.
	ReadOnly bool

	// IsStorage selects storage over uniform.
	IsStorage bool

	// IsIndex marks a buffer also used as an index buffer; recorded for
	// validation only, the layout entry is unaffected.
	IsIndex bool

	// IsVertex marks a buffer also used as a vertex buffer; recorded for
	// validation only, the layout entry is unaffected.
	IsVertex bool
}

// entry is one (group, binding) cell of the table.
type entry struct {
	kind          BindingKind
	buffer        *wgpu.Buffer
	sampler       *wgpu.Sampler
	textures      []*wgpu.TextureView
	storageFormat wgpu.TextureFormat
	opts          BufferOptions
}

// builder is the implementation of the Builder interface.
type builder struct {
	groups [][]entry
	dirty  bool

	layouts    []*wgpu.BindGroupLayout
	bindGroups []*wgpu.BindGroup
}

// Builder accumulates a two-dimensional [group][binding] table of binding
// entries and materializes bind group layouts plus bind groups from it.
// Entries must be pushed in order: group g binding b is accepted only when
// groups 0..g-1 exist and b equals the group's current length. A single
// dirty flag drives rebuild; texture array changes are detected pointwise.
type Builder interface {
	// AddBuffer pushes a buffer entry at (groupIndex, bindingIndex).
	//
	// Parameters:
	//   - groupIndex: the bind group index
	//   - bindingIndex: the binding index within the group
	//   - buffer: the GPU buffer; may be nil until Build
	//   - opts: stage visibility and buffer class
	//
	// Returns:
	//   - error: an error when the push is out of order
	AddBuffer(groupIndex, bindingIndex int, buffer *wgpu.Buffer, opts BufferOptions) error

	// AddDefaultSampler pushes a filtering sampler entry.
	//
	// Parameters:
	//   - groupIndex: the bind group index
	//   - bindingIndex: the binding index within the group
	//   - sampler: the sampler bound at the slot
	//   - stage: the shader stage visibility
	//
	// Returns:
	//   - error: an error when the push is out of order
	AddDefaultSampler(groupIndex, bindingIndex int, sampler *wgpu.Sampler, stage wgpu.ShaderStage) error

	// AddDepthSampler pushes a comparison sampler entry.
	//
	// Parameters:
	//   - groupIndex: the bind group index
	//   - bindingIndex: the binding index within the group
	//   - sampler: the sampler bound at the slot
	//   - stage: the shader stage visibility
	//
	// Returns:
	//   - error: an error when the push is out of order
	AddDepthSampler(groupIndex, bindingIndex int, sampler *wgpu.Sampler, stage wgpu.ShaderStage) error

	// AddTextureArray pushes a texture array entry. When an entry already
	// exists at the slot, the view list is compared pointwise and the dirty
	// flag flips only on difference.
	//
	// Parameters:
	//   - groupIndex: the bind group index
	//   - bindingIndex: the binding index within the group
	//   - views: the texture views, one per slot
	//   - stage: the shader stage visibility
	//
	// Returns:
	//   - error: an error when the push is out of order
	AddTextureArray(groupIndex, bindingIndex int, views []*wgpu.TextureView, stage wgpu.ShaderStage) error

	// AddTexture pushes a single sampled 2-D texture entry. Depth formats
	// bind with a depth sample type, unfilterable-float otherwise.
	//
	// Parameters:
	//   - groupIndex: the bind group index
	//   - bindingIndex: the binding index within the group
	//   - view: the texture view sampled by the shader
	//   - depth: true when the view is a depth texture
	//   - stage: the shader stage visibility
	//
	// Returns:
	//   - error: an error when the push is out of order
	AddTexture(groupIndex, bindingIndex int, view *wgpu.TextureView, depth bool, stage wgpu.ShaderStage) error

	// AddStorageTexture pushes a write-only storage texture entry.
	//
	// Parameters:
	//   - groupIndex: the bind group index
	//   - bindingIndex: the binding index within the group
	//   - view: the texture view written by the shader
	//   - format: the storage texel format
	//   - stage: the shader stage visibility
	//
	// Returns:
	//   - error: an error when the push is out of order
	AddStorageTexture(groupIndex, bindingIndex int, view *wgpu.TextureView, format wgpu.TextureFormat, stage wgpu.ShaderStage) error

	// SetBuffer swaps the buffer at an existing slot, marking dirty when the
	// pointer changed. Used after GPU buffer reallocation.
	//
	// Parameters:
	//   - groupIndex: the bind group index
	//   - bindingIndex: the binding index within the group
	//   - buffer: the new buffer
	//
	// Returns:
	//   - error: an error when the slot does not exist or is not a buffer
	SetBuffer(groupIndex, bindingIndex int, buffer *wgpu.Buffer) error

	// IsDirty reports whether the table changed since the last Build.
	//
	// Returns:
	//   - bool: the dirty flag
	IsDirty() bool

	// Build materializes layouts and bind groups in index order when dirty,
	// releasing stale GPU objects first. A clean builder is a no-op: no GPU
	// object is recreated.
	//
	// Parameters:
	//   - device: the wgpu device
	//
	// Returns:
	//   - error: an error if any layout or group creation fails
	Build(device *wgpu.Device) error

	// BindGroups returns the materialized bind groups in group order.
	//
	// Returns:
	//   - []*wgpu.BindGroup: the bind groups; nil before the first Build
	BindGroups() []*wgpu.BindGroup

	// Layouts returns the materialized layouts in group order.
	//
	// Returns:
	//   - []*wgpu.BindGroupLayout: the layouts; nil before the first Build
	Layouts() []*wgpu.BindGroupLayout

	// Release frees all materialized GPU objects and marks the table dirty.
	Release()
}

var _ Builder = &builder{}

// NewBuilder creates an empty Builder.
//
// Returns:
//   - Builder: the new builder
func NewBuilder() Builder {
	return &builder{}
}

// slot validates ordered insertion and returns a pointer to the new entry.
func (b *builder) slot(groupIndex, bindingIndex int) (*entry, error) {
	if groupIndex > len(b.groups) {
		return nil, fmt.Errorf("binding group %d pushed out of order, have %d groups", groupIndex, len(b.groups))
	}
	if groupIndex == len(b.groups) {
		if bindingIndex != 0 {
			return nil, fmt.Errorf("binding %d opens group %d, want 0", bindingIndex, groupIndex)
		}
		b.groups = append(b.groups, nil)
	}
	if bindingIndex > len(b.groups[groupIndex]) {
		return nil, fmt.Errorf("binding %d pushed out of order in group %d, have %d bindings",
			bindingIndex, groupIndex, len(b.groups[groupIndex]))
	}
	if bindingIndex < len(b.groups[groupIndex]) {
		return &b.groups[groupIndex][bindingIndex], nil
	}
	b.groups[groupIndex] = append(b.groups[groupIndex], entry{})
	return &b.groups[groupIndex][bindingIndex], nil
}

func (b *builder) AddBuffer(groupIndex, bindingIndex int, buffer *wgpu.Buffer, opts BufferOptions) error {
	e, err := b.slot(groupIndex, bindingIndex)
	if err != nil {
		return err
	}
	if e.kind == BindingKindBuffer && e.buffer == buffer && e.opts == opts && e.sampler == nil && e.textures == nil {
		return nil
	}
	*e = entry{kind: BindingKindBuffer, buffer: buffer, opts: opts}
	b.dirty = true
	return nil
}

func (b *builder) AddDefaultSampler(groupIndex, bindingIndex int, sampler *wgpu.Sampler, stage wgpu.ShaderStage) error {
	e, err := b.slot(groupIndex, bindingIndex)
	if err != nil {
		return err
	}
	if e.kind == BindingKindDefaultSampler && e.sampler == sampler && e.opts.Stage == stage {
		return nil
	}
	*e = entry{kind: BindingKindDefaultSampler, sampler: sampler, opts: BufferOptions{Stage: stage}}
	b.dirty = true
	return nil
}

func (b *builder) AddDepthSampler(groupIndex, bindingIndex int, sampler *wgpu.Sampler, stage wgpu.ShaderStage) error {
	e, err := b.slot(groupIndex, bindingIndex)
	if err != nil {
		return err
	}
	if e.kind == BindingKindDepthSampler && e.sampler == sampler && e.opts.Stage == stage {
		return nil
	}
	*e = entry{kind: BindingKindDepthSampler, sampler: sampler, opts: BufferOptions{Stage: stage}}
	b.dirty = true
	return nil
}

func (b *builder) AddTextureArray(groupIndex, bindingIndex int, views []*wgpu.TextureView, stage wgpu.ShaderStage) error {
	e, err := b.slot(groupIndex, bindingIndex)
	if err != nil {
		return err
	}
	if e.kind == BindingKindTextureArray && e.opts.Stage == stage && sameViews(e.textures, views) {
		return nil
	}
	*e = entry{kind: BindingKindTextureArray, textures: append([]*wgpu.TextureView(nil), views...), opts: BufferOptions{Stage: stage}}
	b.dirty = true
	return nil
}

func (b *builder) AddTexture(groupIndex, bindingIndex int, view *wgpu.TextureView, depth bool, stage wgpu.ShaderStage) error {
	e, err := b.slot(groupIndex, bindingIndex)
	if err != nil {
		return err
	}
	if e.kind == BindingKindTexture && e.opts.Stage == stage && e.opts.ReadOnly == depth &&
		len(e.textures) == 1 && e.textures[0] == view {
		return nil
	}
	*e = entry{
		kind:     BindingKindTexture,
		textures: []*wgpu.TextureView{view},
		// ReadOnly doubles as the depth marker for texture entries
		opts: BufferOptions{Stage: stage, ReadOnly: depth},
	}
	b.dirty = true
	return nil
}

func (b *builder) AddStorageTexture(groupIndex, bindingIndex int, view *wgpu.TextureView, format wgpu.TextureFormat, stage wgpu.ShaderStage) error {
	e, err := b.slot(groupIndex, bindingIndex)
	if err != nil {
		return err
	}
	if e.kind == BindingKindStorageTexture && e.opts.Stage == stage && e.storageFormat == format &&
		len(e.textures) == 1 && e.textures[0] == view {
		return nil
	}
	*e = entry{
		kind:          BindingKindStorageTexture,
		textures:      []*wgpu.TextureView{view},
		storageFormat: format,
		opts:          BufferOptions{Stage: stage},
	}
	b.dirty = true
	return nil
}

// sameViews compares view lists pointwise.
func sameViews(a, b []*wgpu.TextureView) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (b *builder) SetBuffer(groupIndex, bindingIndex int, buffer *wgpu.Buffer) error {
	if groupIndex >= len(b.groups) || bindingIndex >= len(b.groups[groupIndex]) {
		return fmt.Errorf("binding (%d, %d) does not exist", groupIndex, bindingIndex)
	}
	e := &b.groups[groupIndex][bindingIndex]
	if e.kind != BindingKindBuffer {
		return fmt.Errorf("binding (%d, %d) is not a buffer", groupIndex, bindingIndex)
	}
	if e.buffer != buffer {
		e.buffer = buffer
		b.dirty = true
	}
	return nil
}

func (b *builder) IsDirty() bool {
	return b.dirty
}

func (b *builder) Build(device *wgpu.Device) error {
	if !b.dirty {
		return nil
	}
	b.releaseGpuObjects()
	if device == nil {
		// placement bookkeeping only; GPU objects wait for a device
		b.dirty = false
		return nil
	}

	for groupIndex, group := range b.groups {
		layoutEntries := make([]wgpu.BindGroupLayoutEntry, 0, len(group))
		groupEntries := make([]wgpu.BindGroupEntry, 0, len(group))
		for bindingIndex, e := range group {
			switch e.kind {
			case BindingKindBuffer:
				bufferType := wgpu.BufferBindingTypeUniform
				if e.opts.IsStorage {
					if e.opts.ReadOnly {
						bufferType = wgpu.BufferBindingTypeReadOnlyStorage
					} else {
						bufferType = wgpu.BufferBindingTypeStorage
					}
				}
				layoutEntries = append(layoutEntries, wgpu.BindGroupLayoutEntry{
					Binding:    uint32(bindingIndex),
					Visibility: e.opts.Stage,
					Buffer: wgpu.BufferBindingLayout{
						Type: bufferType,
					},
				})
				groupEntries = append(groupEntries, wgpu.BindGroupEntry{
					Binding: uint32(bindingIndex),
					Buffer:  e.buffer,
					Size:    wgpu.WholeSize,
				})
			case BindingKindDefaultSampler:
				layoutEntries = append(layoutEntries, wgpu.BindGroupLayoutEntry{
					Binding:    uint32(bindingIndex),
					Visibility: e.opts.Stage,
					Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
				})
				groupEntries = append(groupEntries, wgpu.BindGroupEntry{
					Binding: uint32(bindingIndex),
					Sampler: e.sampler,
				})
			case BindingKindDepthSampler:
				layoutEntries = append(layoutEntries, wgpu.BindGroupLayoutEntry{
					Binding:    uint32(bindingIndex),
					Visibility: e.opts.Stage,
					Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeComparison},
				})
				groupEntries = append(groupEntries, wgpu.BindGroupEntry{
					Binding: uint32(bindingIndex),
					Sampler: e.sampler,
				})
			case BindingKindTexture:
				sampleType := wgpu.TextureSampleTypeUnfilterableFloat
				if e.opts.ReadOnly {
					sampleType = wgpu.TextureSampleTypeDepth
				}
				layoutEntries = append(layoutEntries, wgpu.BindGroupLayoutEntry{
					Binding:    uint32(bindingIndex),
					Visibility: e.opts.Stage,
					Texture: wgpu.TextureBindingLayout{
						SampleType:    sampleType,
						ViewDimension: wgpu.TextureViewDimension2D,
					},
				})
				groupEntries = append(groupEntries, wgpu.BindGroupEntry{
					Binding:     uint32(bindingIndex),
					TextureView: e.textures[0],
				})
			case BindingKindStorageTexture:
				layoutEntries = append(layoutEntries, wgpu.BindGroupLayoutEntry{
					Binding:    uint32(bindingIndex),
					Visibility: e.opts.Stage,
					StorageTexture: wgpu.StorageTextureBindingLayout{
						Access:        wgpu.StorageTextureAccessWriteOnly,
						Format:        e.storageFormat,
						ViewDimension: wgpu.TextureViewDimension2D,
					},
				})
				groupEntries = append(groupEntries, wgpu.BindGroupEntry{
					Binding:     uint32(bindingIndex),
					TextureView: e.textures[0],
				})
			case BindingKindTextureArray:
				// fallback path: one slot per atlas view, consecutive bindings
				for slot, view := range e.textures {
					layoutEntries = append(layoutEntries, wgpu.BindGroupLayoutEntry{
						Binding:    uint32(bindingIndex + slot),
						Visibility: e.opts.Stage,
						Texture: wgpu.TextureBindingLayout{
							SampleType:    wgpu.TextureSampleTypeFloat,
							ViewDimension: wgpu.TextureViewDimension2DArray,
						},
					})
					groupEntries = append(groupEntries, wgpu.BindGroupEntry{
						Binding:     uint32(bindingIndex + slot),
						TextureView: view,
					})
				}
			}
		}

		layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("binding_layout_%d", groupIndex),
			Entries: layoutEntries,
		})
		if err != nil {
			return fmt.Errorf("bind group layout %d creation failed: %w", groupIndex, err)
		}
		bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("binding_group_%d", groupIndex),
			Layout:  layout,
			Entries: groupEntries,
		})
		if err != nil {
			layout.Release()
			return fmt.Errorf("bind group %d creation failed: %w", groupIndex, err)
		}
		b.layouts = append(b.layouts, layout)
		b.bindGroups = append(b.bindGroups, bindGroup)
	}
	b.dirty = false
	return nil
}

func (b *builder) BindGroups() []*wgpu.BindGroup {
	return b.bindGroups
}

func (b *builder) Layouts() []*wgpu.BindGroupLayout {
	return b.layouts
}

func (b *builder) releaseGpuObjects() {
	for _, g := range b.bindGroups {
		g.Release()
	}
	for _, l := range b.layouts {
		l.Release()
	}
	b.bindGroups = nil
	b.layouts = nil
}

func (b *builder) Release() {
	b.releaseGpuObjects()
	b.dirty = true
}
