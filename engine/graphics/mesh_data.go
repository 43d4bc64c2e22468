package graphics

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/onyx-go/common"
)

// VertexAttributeLayout is a bitset over the vertex attributes a mesh carries.
// Shader variants are selected by bit-equality on this value.
type VertexAttributeLayout uint32

const (
	// VertexAttributeHasPosition marks the packed position stream; always present.
	VertexAttributeHasPosition VertexAttributeLayout = 1 << iota

	// VertexAttributeHasColor marks the packed vertex color stream.
	VertexAttributeHasColor

	// VertexAttributeHasNormal marks the packed normal stream.
	VertexAttributeHasNormal

	// VertexAttributeHasTangent marks the packed tangent stream.
	VertexAttributeHasTangent

	// VertexAttributeHasUV1 marks the first UV set.
	VertexAttributeHasUV1

	// VertexAttributeHasUV2 marks the second UV set.
	VertexAttributeHasUV2

	// VertexAttributeHasUV3 marks the third UV set.
	VertexAttributeHasUV3

	// VertexAttributeHasUV4 marks the fourth UV set.
	VertexAttributeHasUV4
)

// MeshletData is the asset-side meshlet record produced by the binarizer.
// ChildMeshlets links each meshlet to the coarser meshlets built from its
// group, forming the LOD DAG from each level to the next coarser one.
type MeshletData struct {
	// VerticesOffset is the meshlet's first vertex, relative to the mesh.
	VerticesOffset uint32

	// IndicesOffset is the meshlet's first index, relative to the mesh.
	IndicesOffset uint32

	// IndicesCount is the meshlet's index count; always a multiple of 3.
	IndicesCount uint32

	// AabbMin is the meshlet AABB minimum in mesh-local space.
	AabbMin [3]float32

	// AabbMax is the meshlet AABB maximum in mesh-local space.
	AabbMax [3]float32

	// Center is the bounding sphere center in mesh-local space.
	Center [3]float32

	// Radius is the bounding sphere radius.
	Radius float32

	// ConeAxis is the backface culling cone axis.
	ConeAxis [3]float32

	// ConeCutoff is the backface culling cone cutoff.
	ConeCutoff float32

	// ChildMeshlets indexes the coarser meshlets built from this meshlet's group.
	ChildMeshlets []uint32
}

// MeshData is the compiled on-disk mesh: packed attribute streams, indices,
// meshlets and bounds. Attribute streams are parallel (one entry per vertex)
// but serialized separately so meshes carrying a subset pay nothing for
// absent attributes.
type MeshData struct {
	// VertexLayout records which attribute streams are present.
	VertexLayout VertexAttributeLayout

	// Vertices holds the per-vertex stream offsets.
	Vertices []DrawVertex

	// Positions is the 10:10:10:2 packed position stream, mesh-AABB relative.
	Positions []uint32

	// Colors is the rgba8 packed color stream.
	Colors []uint32

	// Normals is the 10:10:10:2 packed normal stream.
	Normals []uint32

	// Tangents is the 10:10:10:2 packed tangent stream.
	Tangents []uint32

	// Uvs is the half2 packed uv stream, all sets concatenated per vertex.
	Uvs []uint32

	// Indices is the index stream.
	Indices []uint32

	// Meshlets is the full meshlet list, finest LOD first.
	Meshlets []MeshletData

	// AabbMin is the mesh AABB minimum.
	AabbMin [3]float32

	// AabbMax is the mesh AABB maximum.
	AabbMax [3]float32

	// Material is the compiled-asset-relative path of the material blob.
	Material string

	// MeshCategoryIdentifier groups meshes for pipeline selection.
	MeshCategoryIdentifier uint64
}

// MaterialData is the compiled on-disk material.
type MaterialData struct {
	// Pipeline is the compiled-asset-relative path of the pipeline blob.
	Pipeline string

	// Textures holds one compiled-asset-relative texture path per slot; empty when unset.
	Textures [TextureTypeCount]string

	// TexcoordsSet selects the UV set per texture slot.
	TexcoordsSet [TextureTypeCount]uint32

	// BaseColor, EmissiveColor, DiffuseColor, SpecularColor are the material color factors.
	BaseColor, EmissiveColor, DiffuseColor, SpecularColor [4]float32

	// RoughnessFactor and MetallicFactor are the PBR scalars.
	RoughnessFactor, MetallicFactor float32

	// AlphaCutoff is the mask-mode discard threshold.
	AlphaCutoff float32

	// OcclusionStrength scales the occlusion texture.
	OcclusionStrength float32

	// AlphaMode is one of AlphaModeOpaque, AlphaModeMask, AlphaModeBlend.
	AlphaMode uint32
}

// ObjectData is a compiled scene node: a transform plus references to
// components and children by path, never by owning pointer.
type ObjectData struct {
	// Transform is the node's local transform, column-major.
	Transform [16]float32

	// Components holds compiled-asset-relative paths of attached blobs (meshes, lights, cameras).
	Components []string

	// Children holds compiled-asset-relative paths of child objects.
	Children []string
}

// SceneData is the compiled scene root.
type SceneData struct {
	// Objects holds compiled-asset-relative paths of root objects.
	Objects []string

	// Cameras holds compiled-asset-relative paths of camera blobs.
	Cameras []string

	// Lights holds compiled-asset-relative paths of light blobs.
	Lights []string
}

// CameraData is a compiled camera component.
type CameraData struct {
	// Fov is the vertical field of view in degrees.
	Fov float32

	// Near and Far are the clip plane distances.
	Near, Far float32
}

// LightAssetData is a compiled light component; mirrors LightData plus
// nothing, but kept separate so the on-disk format can evolve without
// touching the GPU layout.
type LightAssetData struct {
	// Light is the flat light record written to the lights arena on load.
	Light LightData
}

// Blob extensions for each compiled asset type.
const (
	// MeshDataExtension is the compiled mesh blob extension.
	MeshDataExtension = ".mesh_data"

	// MaterialDataExtension is the compiled material blob extension.
	MaterialDataExtension = ".material_data"

	// ObjectDataExtension is the compiled object blob extension.
	ObjectDataExtension = ".object_data"

	// SceneDataExtension is the compiled scene blob extension.
	SceneDataExtension = ".scene_data"

	// CameraDataExtension is the compiled camera blob extension.
	CameraDataExtension = ".camera_data"

	// LightDataExtension is the compiled light blob extension.
	LightDataExtension = ".light_data"

	// TextureDataExtension is the compiled texture blob extension.
	TextureDataExtension = ".texture_data"
)

// blobMagic and blobVersion head every compiled blob; readers reject
// mismatches before decoding any payload.
const (
	blobMagic   uint32 = 0x4F4E5853 // "ONXS"
	blobVersion uint32 = 1
)

// blobWriter accumulates a little-endian blob body.
type blobWriter struct {
	buf bytes.Buffer
}

func newBlobWriter() *blobWriter {
	w := &blobWriter{}
	w.u32(blobMagic)
	w.u32(blobVersion)
	return w
}

func (w *blobWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *blobWriter) i32(v int32) { w.u32(uint32(v)) }

func (w *blobWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *blobWriter) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *blobWriter) vec3(v [3]float32) {
	w.f32(v[0])
	w.f32(v[1])
	w.f32(v[2])
}

func (w *blobWriter) vec4(v [4]float32) {
	w.f32(v[0])
	w.f32(v[1])
	w.f32(v[2])
	w.f32(v[3])
}

func (w *blobWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *blobWriter) u32s(vs []uint32) {
	w.u32(uint32(len(vs)))
	for _, v := range vs {
		w.u32(v)
	}
}

func (w *blobWriter) strs(vs []string) {
	w.u32(uint32(len(vs)))
	for _, v := range vs {
		w.str(v)
	}
}

func (w *blobWriter) bytes() []byte { return w.buf.Bytes() }

// blobReader decodes a little-endian blob body, tracking the first error.
type blobReader struct {
	data []byte
	off  int
	err  error
}

func newBlobReader(data []byte) (*blobReader, error) {
	r := &blobReader{data: data}
	if magic := r.u32(); magic != blobMagic {
		return nil, fmt.Errorf("bad blob magic 0x%08X", magic)
	}
	if version := r.u32(); version != blobVersion {
		return nil, fmt.Errorf("unsupported blob version %d", version)
	}
	return r, nil
}

func (r *blobReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.off+4 > len(r.data) {
		r.err = fmt.Errorf("blob truncated at offset %d", r.off)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *blobReader) i32() int32 { return int32(r.u32()) }

func (r *blobReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	if r.off+8 > len(r.data) {
		r.err = fmt.Errorf("blob truncated at offset %d", r.off)
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

func (r *blobReader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *blobReader) vec3() [3]float32 {
	return [3]float32{r.f32(), r.f32(), r.f32()}
}

func (r *blobReader) vec4() [4]float32 {
	return [4]float32{r.f32(), r.f32(), r.f32(), r.f32()}
}

func (r *blobReader) str() string {
	n := int(r.u32())
	if r.err != nil {
		return ""
	}
	if r.off+n > len(r.data) {
		r.err = fmt.Errorf("blob truncated at offset %d", r.off)
		return ""
	}
	s := string(r.data[r.off : r.off+n])
	r.off += n
	return s
}

func (r *blobReader) u32s() []uint32 {
	n := int(r.u32())
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = r.u32()
	}
	return out
}

func (r *blobReader) strs() []string {
	n := int(r.u32())
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = r.str()
	}
	return out
}

// Marshal serializes the MeshData into a versioned little-endian blob.
//
// Returns:
//   - []byte: the blob bytes
func (m *MeshData) Marshal() []byte {
	w := newBlobWriter()
	w.u32(uint32(m.VertexLayout))
	w.u32(uint32(len(m.Vertices)))
	for i := range m.Vertices {
		v := &m.Vertices[i]
		w.u32(v.PositionAndColorOffset)
		w.i32(v.NormalOffset)
		w.i32(v.TangentOffset)
		w.u32(v.MeshIndex)
		for _, uv := range v.UvOffset {
			w.i32(uv)
		}
	}
	w.u32s(m.Positions)
	w.u32s(m.Colors)
	w.u32s(m.Normals)
	w.u32s(m.Tangents)
	w.u32s(m.Uvs)
	w.u32s(m.Indices)
	w.u32(uint32(len(m.Meshlets)))
	for i := range m.Meshlets {
		ml := &m.Meshlets[i]
		w.u32(ml.VerticesOffset)
		w.u32(ml.IndicesOffset)
		w.u32(ml.IndicesCount)
		w.vec3(ml.AabbMin)
		w.vec3(ml.AabbMax)
		w.vec3(ml.Center)
		w.f32(ml.Radius)
		w.vec3(ml.ConeAxis)
		w.f32(ml.ConeCutoff)
		w.u32s(ml.ChildMeshlets)
	}
	w.vec3(m.AabbMin)
	w.vec3(m.AabbMax)
	w.str(m.Material)
	w.u64(m.MeshCategoryIdentifier)
	return w.bytes()
}

// UnmarshalMeshData decodes a compiled mesh blob.
//
// Parameters:
//   - data: the blob bytes
//
// Returns:
//   - *MeshData: the decoded mesh
//   - error: an error if the blob is malformed
func UnmarshalMeshData(data []byte) (*MeshData, error) {
	r, err := newBlobReader(data)
	if err != nil {
		return nil, err
	}
	m := &MeshData{}
	m.VertexLayout = VertexAttributeLayout(r.u32())
	vertexCount := int(r.u32())
	if r.err == nil && vertexCount > 0 {
		m.Vertices = make([]DrawVertex, vertexCount)
		for i := range m.Vertices {
			v := &m.Vertices[i]
			v.PositionAndColorOffset = r.u32()
			v.NormalOffset = r.i32()
			v.TangentOffset = r.i32()
			v.MeshIndex = r.u32()
			for j := range v.UvOffset {
				v.UvOffset[j] = r.i32()
			}
		}
	}
	m.Positions = r.u32s()
	m.Colors = r.u32s()
	m.Normals = r.u32s()
	m.Tangents = r.u32s()
	m.Uvs = r.u32s()
	m.Indices = r.u32s()
	meshletCount := int(r.u32())
	if r.err == nil && meshletCount > 0 {
		m.Meshlets = make([]MeshletData, meshletCount)
		for i := range m.Meshlets {
			ml := &m.Meshlets[i]
			ml.VerticesOffset = r.u32()
			ml.IndicesOffset = r.u32()
			ml.IndicesCount = r.u32()
			ml.AabbMin = r.vec3()
			ml.AabbMax = r.vec3()
			ml.Center = r.vec3()
			ml.Radius = r.f32()
			ml.ConeAxis = r.vec3()
			ml.ConeCutoff = r.f32()
			ml.ChildMeshlets = r.u32s()
		}
	}
	m.AabbMin = r.vec3()
	m.AabbMax = r.vec3()
	m.Material = r.str()
	m.MeshCategoryIdentifier = r.u64()
	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

// Marshal serializes the MaterialData into a versioned little-endian blob.
//
// Returns:
//   - []byte: the blob bytes
func (m *MaterialData) Marshal() []byte {
	w := newBlobWriter()
	w.str(m.Pipeline)
	for _, t := range m.Textures {
		w.str(t)
	}
	for _, s := range m.TexcoordsSet {
		w.u32(s)
	}
	w.vec4(m.BaseColor)
	w.vec4(m.EmissiveColor)
	w.vec4(m.DiffuseColor)
	w.vec4(m.SpecularColor)
	w.f32(m.RoughnessFactor)
	w.f32(m.MetallicFactor)
	w.f32(m.AlphaCutoff)
	w.f32(m.OcclusionStrength)
	w.u32(m.AlphaMode)
	return w.bytes()
}

// UnmarshalMaterialData decodes a compiled material blob.
//
// Parameters:
//   - data: the blob bytes
//
// Returns:
//   - *MaterialData: the decoded material
//   - error: an error if the blob is malformed
func UnmarshalMaterialData(data []byte) (*MaterialData, error) {
	r, err := newBlobReader(data)
	if err != nil {
		return nil, err
	}
	m := &MaterialData{}
	m.Pipeline = r.str()
	for i := range m.Textures {
		m.Textures[i] = r.str()
	}
	for i := range m.TexcoordsSet {
		m.TexcoordsSet[i] = r.u32()
	}
	m.BaseColor = r.vec4()
	m.EmissiveColor = r.vec4()
	m.DiffuseColor = r.vec4()
	m.SpecularColor = r.vec4()
	m.RoughnessFactor = r.f32()
	m.MetallicFactor = r.f32()
	m.AlphaCutoff = r.f32()
	m.OcclusionStrength = r.f32()
	m.AlphaMode = r.u32()
	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

// Marshal serializes the ObjectData into a versioned little-endian blob.
//
// Returns:
//   - []byte: the blob bytes
func (o *ObjectData) Marshal() []byte {
	w := newBlobWriter()
	for _, v := range o.Transform {
		w.f32(v)
	}
	w.strs(o.Components)
	w.strs(o.Children)
	return w.bytes()
}

// UnmarshalObjectData decodes a compiled object blob.
//
// Parameters:
//   - data: the blob bytes
//
// Returns:
//   - *ObjectData: the decoded object
//   - error: an error if the blob is malformed
func UnmarshalObjectData(data []byte) (*ObjectData, error) {
	r, err := newBlobReader(data)
	if err != nil {
		return nil, err
	}
	o := &ObjectData{}
	for i := range o.Transform {
		o.Transform[i] = r.f32()
	}
	o.Components = r.strs()
	o.Children = r.strs()
	if r.err != nil {
		return nil, r.err
	}
	return o, nil
}

// Marshal serializes the SceneData into a versioned little-endian blob.
//
// Returns:
//   - []byte: the blob bytes
func (s *SceneData) Marshal() []byte {
	w := newBlobWriter()
	w.strs(s.Objects)
	w.strs(s.Cameras)
	w.strs(s.Lights)
	return w.bytes()
}

// UnmarshalSceneData decodes a compiled scene blob.
//
// Parameters:
//   - data: the blob bytes
//
// Returns:
//   - *SceneData: the decoded scene
//   - error: an error if the blob is malformed
func UnmarshalSceneData(data []byte) (*SceneData, error) {
	r, err := newBlobReader(data)
	if err != nil {
		return nil, err
	}
	s := &SceneData{}
	s.Objects = r.strs()
	s.Cameras = r.strs()
	s.Lights = r.strs()
	if r.err != nil {
		return nil, r.err
	}
	return s, nil
}

// Marshal serializes the CameraData into a versioned little-endian blob.
//
// Returns:
//   - []byte: the blob bytes
func (c *CameraData) Marshal() []byte {
	w := newBlobWriter()
	w.f32(c.Fov)
	w.f32(c.Near)
	w.f32(c.Far)
	return w.bytes()
}

// UnmarshalCameraData decodes a compiled camera blob.
//
// Parameters:
//   - data: the blob bytes
//
// Returns:
//   - *CameraData: the decoded camera
//   - error: an error if the blob is malformed
func UnmarshalCameraData(data []byte) (*CameraData, error) {
	r, err := newBlobReader(data)
	if err != nil {
		return nil, err
	}
	c := &CameraData{}
	c.Fov = r.f32()
	c.Near = r.f32()
	c.Far = r.f32()
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

// Marshal serializes the LightAssetData into a versioned little-endian blob.
//
// Returns:
//   - []byte: the blob bytes
func (l *LightAssetData) Marshal() []byte {
	w := newBlobWriter()
	w.vec3(l.Light.Position)
	w.u32(l.Light.LightType)
	w.vec4(l.Light.Color)
	w.f32(l.Light.Intensity)
	w.f32(l.Light.Range)
	w.f32(l.Light.InnerCone)
	w.f32(l.Light.OuterCone)
	return w.bytes()
}

// UnmarshalLightAssetData decodes a compiled light blob.
//
// Parameters:
//   - data: the blob bytes
//
// Returns:
//   - *LightAssetData: the decoded light
//   - error: an error if the blob is malformed
func UnmarshalLightAssetData(data []byte) (*LightAssetData, error) {
	r, err := newBlobReader(data)
	if err != nil {
		return nil, err
	}
	l := &LightAssetData{}
	l.Light.Position = r.vec3()
	l.Light.LightType = r.u32()
	l.Light.Color = r.vec4()
	l.Light.Intensity = r.f32()
	l.Light.Range = r.f32()
	l.Light.InnerCone = r.f32()
	l.Light.OuterCone = r.f32()
	if r.err != nil {
		return nil, r.err
	}
	return l, nil
}

// UvForSet returns the packed uv value for a vertex and set, resolving the
// per-vertex stream offset. Returns false when the vertex carries no uv for
// the set.
//
// Parameters:
//   - vertexIndex: the vertex to read
//   - set: the uv set in [0, MaxTextureCoordsSets)
//
// Returns:
//   - uint32: the packed half2 uv
//   - bool: false when absent
func (m *MeshData) UvForSet(vertexIndex, set int) (uint32, bool) {
	if vertexIndex >= len(m.Vertices) || set >= MaxTextureCoordsSets {
		return 0, false
	}
	off := m.Vertices[vertexIndex].UvOffset[set]
	if off < 0 || int(off) >= len(m.Uvs) {
		return 0, false
	}
	return m.Uvs[off], true
}

// PositionOf decodes the mesh-local position of a vertex from
// the packed position stream.
//
// Parameters:
//   - vertexIndex: the vertex to read
//
// Returns:
//   - [3]float32: the decoded position
func (m *MeshData) PositionOf(vertexIndex int) [3]float32 {
	packed := m.Positions[m.Vertices[vertexIndex].PositionAndColorOffset]
	return common.DenormalizeFromAabb(common.UnpackSnorm10(packed), m.AabbMin, m.AabbMax)
}

// IsEmpty reports whether the mesh carries no drawable geometry.
//
// Returns:
//   - bool: true when vertices or indices are empty
func (m *MeshData) IsEmpty() bool {
	return len(m.Vertices) == 0 || len(m.Indices) == 0
}

// PipelineData is a compiled pipeline description: shader paths plus the
// fixed-function state and the mesh-flag filter selecting which meshes the
// pipeline draws.
type PipelineData struct {
	// Name identifies the pipeline for caching.
	Name string

	// VertexShader, FragmentShader and ComputeShader are compiled-asset-relative
	// shader paths; compute pipelines leave the render paths empty.
	VertexShader, FragmentShader, ComputeShader string

	// CullMode is 0 none, 1 front, 2 back.
	CullMode uint32

	// PolygonMode is 0 fill, 1 line, 2 point.
	PolygonMode uint32

	// BlendEnabled turns on alpha blending.
	BlendEnabled bool

	// DepthWriteEnabled turns on depth writes.
	DepthWriteEnabled bool

	// MeshFlagsFilter selects the DrawMesh subset the pipeline draws.
	MeshFlagsFilter uint32
}

// PipelineDataExtension is the compiled pipeline blob extension.
const PipelineDataExtension = ".pipeline_data"

// Marshal serializes the PipelineData into a versioned little-endian blob.
//
// Returns:
//   - []byte: the blob bytes
func (p *PipelineData) Marshal() []byte {
	w := newBlobWriter()
	w.str(p.Name)
	w.str(p.VertexShader)
	w.str(p.FragmentShader)
	w.str(p.ComputeShader)
	w.u32(p.CullMode)
	w.u32(p.PolygonMode)
	flags := uint32(0)
	if p.BlendEnabled {
		flags |= 1
	}
	if p.DepthWriteEnabled {
		flags |= 2
	}
	w.u32(flags)
	w.u32(p.MeshFlagsFilter)
	return w.bytes()
}

// UnmarshalPipelineData decodes a compiled pipeline blob.
//
// Parameters:
//   - data: the blob bytes
//
// Returns:
//   - *PipelineData: the decoded pipeline description
//   - error: an error if the blob is malformed
func UnmarshalPipelineData(data []byte) (*PipelineData, error) {
	r, err := newBlobReader(data)
	if err != nil {
		return nil, err
	}
	p := &PipelineData{}
	p.Name = r.str()
	p.VertexShader = r.str()
	p.FragmentShader = r.str()
	p.ComputeShader = r.str()
	p.CullMode = r.u32()
	p.PolygonMode = r.u32()
	flags := r.u32()
	p.BlendEnabled = flags&1 != 0
	p.DepthWriteEnabled = flags&2 != 0
	p.MeshFlagsFilter = r.u32()
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}
