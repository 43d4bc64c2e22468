// package loader reads glTF 2.0 / GLB files into plain imported structs the
// binarizer compiles. The JSON/GLB plumbing lives in gltf_parser.go; the
// extractors pull geometry, materials, nodes and cameras out of the parsed
// document.
package loader

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
)

// ImportedPrimitive is one drawable primitive of a glTF mesh: positions plus
// any subset of normals, colors, tangents and up to four UV sets.
type ImportedPrimitive struct {
	// Name identifies the primitive (mesh name plus primitive suffix).
	Name string

	// Positions is the required position stream.
	Positions [][3]float32

	// Normals is the optional normal stream; nil when absent.
	Normals [][3]float32

	// Colors is the optional vertex color stream; nil when absent.
	Colors [][4]float32

	// Tangents is the optional tangent stream (xyz direction, w handedness).
	Tangents [][4]float32

	// Uvs holds up to four texture coordinate sets; unused sets are nil.
	Uvs [4][][2]float32

	// UvSetCount is the number of populated UV sets.
	UvSetCount int

	// Indices is the triangle index stream; length is a multiple of 3.
	Indices []uint32

	// MaterialIndex references the document material list, or -1.
	MaterialIndex int

	// AabbMin and AabbMax bound the position stream.
	AabbMin, AabbMax [3]float32
}

// ImportedMaterial is a glTF material resolved into engine texture slots.
type ImportedMaterial struct {
	// Name is the material identifier.
	Name string

	// BaseColor is the albedo factor (RGBA).
	BaseColor [4]float32

	// EmissiveColor is the emissive factor.
	EmissiveColor [4]float32

	// Metallic factor (0.0 = dielectric, 1.0 = metal).
	Metallic float32

	// Roughness factor (0.0 = smooth, 1.0 = rough).
	Roughness float32

	// AlphaCutoff is the mask-mode discard threshold.
	AlphaCutoff float32

	// OcclusionStrength scales the occlusion texture.
	OcclusionStrength float32

	// AlphaMode is one of the graphics alpha modes.
	AlphaMode uint32

	// DoubleSided disables backface culling for the material.
	DoubleSided bool

	// Textures holds the loaded texture per engine slot; nil when unset.
	Textures [graphics.TextureTypeCount]*common.ImportedTexture

	// TexturePaths holds the external file path per slot; empty for embedded.
	TexturePaths [graphics.TextureTypeCount]string

	// TexcoordsSet selects the UV set per slot.
	TexcoordsSet [graphics.TextureTypeCount]uint32
}

// ImportedNode is one node of the glTF scene hierarchy. Children are index
// lists into the scene's node array, never pointers.
type ImportedNode struct {
	// Name identifies the node.
	Name string

	// Transform is the node's local transform, column-major.
	Transform [16]float32

	// MeshIndex references the document mesh list, or -1.
	MeshIndex int

	// CameraIndex references the document camera list, or -1.
	CameraIndex int

	// Children are indices of child nodes.
	Children []int
}

// ImportedCamera is a perspective camera definition.
type ImportedCamera struct {
	// Name identifies the camera.
	Name string

	// FovDegrees is the vertical field of view in degrees.
	FovDegrees float32

	// Near and Far are the clip plane distances; Far 0 means infinite.
	Near, Far float32
}

// ImportedScene is the full import result of one glTF file.
type ImportedScene struct {
	// Name is the scene name, defaulting to the file stem.
	Name string

	// Meshes groups primitives per document mesh index.
	Meshes [][]ImportedPrimitive

	// Materials is the document material list.
	Materials []*ImportedMaterial

	// Nodes is the flattened node hierarchy.
	Nodes []ImportedNode

	// Roots are indices of the default scene's root nodes.
	Roots []int

	// Cameras is the document camera list.
	Cameras []ImportedCamera
}

// importer is the implementation of the Importer interface.
type importer struct {
	parser gltfParser
}

// Importer reads a glTF or GLB file into an ImportedScene.
type Importer interface {
	// Import parses the file at path and extracts every mesh, material,
	// node and camera. Primitives that fail validation are skipped with a
	// diagnostic; a file-level parse failure aborts.
	//
	// Parameters:
	//   - path: the .gltf or .glb file path
	//
	// Returns:
	//   - *ImportedScene: the imported scene
	//   - error: error if parsing fails
	Import(path string) (*ImportedScene, error)
}

var _ Importer = &importer{}

// NewImporter creates a glTF Importer.
//
// Returns:
//   - Importer: the new importer
func NewImporter() Importer {
	return &importer{parser: newGLTFParser()}
}

func (l *importer) Import(path string) (*ImportedScene, error) {
	if err := l.parser.Parse(path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	doc := l.parser.Document()

	scene := &ImportedScene{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	meshExtractor := newGLTFMeshExtractor(l.parser)
	meshes, err := meshExtractor.ExtractAllMeshes()
	if err != nil {
		return nil, err
	}
	scene.Meshes = meshes

	materialExtractor := newGLTFMaterialExtractor(l.parser)
	materials, err := materialExtractor.ExtractAllMaterials()
	if err != nil {
		return nil, err
	}
	scene.Materials = materials

	scene.Nodes = make([]ImportedNode, len(doc.Nodes))
	for i := range doc.Nodes {
		scene.Nodes[i] = extractNode(&doc.Nodes[i], i)
	}
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		scene.Roots = doc.Scenes[*doc.Scene].Nodes
	} else if len(doc.Scenes) > 0 {
		scene.Roots = doc.Scenes[0].Nodes
	}

	for i := range doc.Cameras {
		scene.Cameras = append(scene.Cameras, extractCamera(&doc.Cameras[i], i))
	}
	return scene, nil
}

// extractNode flattens a glTF node into an ImportedNode, composing the TRS
// properties into a column-major matrix when no literal matrix is present.
func extractNode(n *gltfNode, index int) ImportedNode {
	node := ImportedNode{
		Name:        n.Name,
		MeshIndex:   -1,
		CameraIndex: -1,
		Children:    n.Children,
	}
	if node.Name == "" {
		node.Name = fmt.Sprintf("node_%d", index)
	}
	if n.Mesh != nil {
		node.MeshIndex = *n.Mesh
	}
	if n.Camera != nil {
		node.CameraIndex = *n.Camera
	}

	if n.Matrix != nil {
		node.Transform = *n.Matrix
		return node
	}
	translation := [3]float32{0, 0, 0}
	rotation := [4]float32{0, 0, 0, 1}
	scale := [3]float32{1, 1, 1}
	if n.Translation != nil {
		translation = *n.Translation
	}
	if n.Rotation != nil {
		rotation = *n.Rotation
	}
	if n.Scale != nil {
		scale = *n.Scale
	}
	node.Transform = composeTrs(translation, rotation, scale)
	return node
}

// composeTrs builds a column-major matrix from translation, quaternion
// rotation and scale, per the glTF node transform rules (T * R * S).
func composeTrs(t [3]float32, q [4]float32, s [3]float32) [16]float32 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	var m [16]float32
	m[0] = (1 - 2*(yy+zz)) * s[0]
	m[1] = 2 * (xy + wz) * s[0]
	m[2] = 2 * (xz - wy) * s[0]

	m[4] = 2 * (xy - wz) * s[1]
	m[5] = (1 - 2*(xx+zz)) * s[1]
	m[6] = 2 * (yz + wx) * s[1]

	m[8] = 2 * (xz + wy) * s[2]
	m[9] = 2 * (yz - wx) * s[2]
	m[10] = (1 - 2*(xx+yy)) * s[2]

	m[12], m[13], m[14] = t[0], t[1], t[2]
	m[15] = 1
	return m
}

// extractCamera converts a glTF camera to the engine representation.
// Orthographic cameras fall back to a default perspective.
func extractCamera(c *gltfCamera, index int) ImportedCamera {
	cam := ImportedCamera{
		Name:       c.Name,
		FovDegrees: 60,
		Near:       0.1,
		Far:        1000,
	}
	if cam.Name == "" {
		cam.Name = fmt.Sprintf("camera_%d", index)
	}
	if c.Perspective != nil {
		cam.FovDegrees = c.Perspective.Yfov * 180 / math.Pi
		cam.Near = c.Perspective.Znear
		if c.Perspective.Zfar != nil {
			cam.Far = *c.Perspective.Zfar
		} else {
			cam.Far = 0
		}
	}
	return cam
}
