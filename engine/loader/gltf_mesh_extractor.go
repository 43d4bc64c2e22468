package loader

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/onyx-go/common"
)

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
}

// gltfMeshExtractor defines the interface for extracting raw primitive
// geometry from a parsed glTF document for the binarizer.
type gltfMeshExtractor interface {
	// ExtractMesh extracts all primitives of a mesh by index.
	//
	// Parameters:
	//   - meshIndex: the index of the mesh in the document
	//
	// Returns:
	//   - []ImportedPrimitive: one entry per primitive
	//   - error: error if extraction fails
	ExtractMesh(meshIndex int) ([]ImportedPrimitive, error)

	// ExtractAllMeshes extracts every mesh in the document, mesh by mesh.
	//
	// Returns:
	//   - [][]ImportedPrimitive: primitives grouped per mesh, indexed like the document
	//   - error: error if extraction fails
	ExtractAllMeshes() ([][]ImportedPrimitive, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a new mesh extractor for a parsed document.
func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

func (e *gltfMeshExtractorImpl) ExtractMesh(meshIndex int) ([]ImportedPrimitive, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}

	mesh := &doc.Meshes[meshIndex]
	primitives := make([]ImportedPrimitive, 0, len(mesh.Primitives))
	for i := range mesh.Primitives {
		prim, err := e.extractPrimitive(&mesh.Primitives[i], mesh.Name, i)
		if err != nil {
			// missing required attributes abort the primitive with a diagnostic;
			// the rest of the mesh still compiles
			log.Printf("[Loader] mesh %q primitive %d skipped: %v", mesh.Name, i, err)
			continue
		}
		primitives = append(primitives, *prim)
	}
	return primitives, nil
}

func (e *gltfMeshExtractorImpl) ExtractAllMeshes() ([][]ImportedPrimitive, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	meshes := make([][]ImportedPrimitive, len(doc.Meshes))
	for i := range doc.Meshes {
		primitives, err := e.ExtractMesh(i)
		if err != nil {
			return nil, err
		}
		meshes[i] = primitives
	}
	return meshes, nil
}

// uvSetAttributes lists the glTF texcoord semantics in set order.
var uvSetAttributes = [4]string{"TEXCOORD_0", "TEXCOORD_1", "TEXCOORD_2", "TEXCOORD_3"}

func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive, meshName string, primIndex int) (*ImportedPrimitive, error) {
	// Check for triangle mode (default is TRIANGLES)
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return nil, fmt.Errorf("unsupported primitive mode: %d (only triangles supported)", *prim.Mode)
	}

	// Extract positions (required)
	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := e.parser.ReadVec3Accessor(posAccessor)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	out := &ImportedPrimitive{Positions: positions}
	vertexCount := len(positions)

	// Extract normals (optional)
	if normalAccessor, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := e.parser.ReadVec3Accessor(normalAccessor)
		if err != nil {
			log.Printf("[Loader] mesh %q: normals skipped: %v", meshName, err)
		} else if len(normals) == vertexCount {
			out.Normals = normals
		}
	}

	// Extract vertex colors (optional)
	if colorAccessor, ok := prim.Attributes["COLOR_0"]; ok {
		colors, err := e.readColorAccessor(colorAccessor)
		if err != nil {
			log.Printf("[Loader] mesh %q: colors skipped: %v", meshName, err)
		} else if len(colors) == vertexCount {
			out.Colors = colors
		}
	}

	// Extract tangent vectors (optional, for normal mapping).
	// glTF TANGENT is VEC4: xyz = tangent direction, w = handedness (±1).
	if tangentAccessor, ok := prim.Attributes["TANGENT"]; ok {
		tangents, err := e.parser.ReadVec4Accessor(tangentAccessor)
		if err != nil {
			log.Printf("[Loader] mesh %q: tangents skipped: %v", meshName, err)
		} else if len(tangents) == vertexCount {
			out.Tangents = tangents
		}
	}

	// Extract up to four texture coordinate sets (optional)
	for set, semantic := range uvSetAttributes {
		accessor, ok := prim.Attributes[semantic]
		if !ok {
			continue
		}
		texCoords, err := e.parser.ReadVec2Accessor(accessor)
		if err != nil {
			log.Printf("[Loader] mesh %q: %s skipped: %v", meshName, semantic, err)
			continue
		}
		if len(texCoords) == vertexCount {
			out.Uvs[set] = texCoords
			if set >= out.UvSetCount {
				out.UvSetCount = set + 1
			}
		}
	}

	// Extract indices
	if prim.Indices != nil {
		out.Indices, err = e.parser.ReadIndicesAccessor(*prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("failed to read indices: %w", err)
		}
	} else {
		// Generate sequential indices if none provided
		out.Indices = make([]uint32, vertexCount)
		for i := range out.Indices {
			out.Indices[i] = uint32(i)
		}
	}
	if len(out.Indices)%3 != 0 {
		return nil, fmt.Errorf("index count %d not divisible by 3", len(out.Indices))
	}

	// Calculate bounding box
	out.AabbMin, out.AabbMax = gltfCalculateBoundingBox(positions)

	// Determine material index
	out.MaterialIndex = -1
	if prim.Material != nil {
		out.MaterialIndex = *prim.Material
	}

	// Build primitive name
	name := meshName
	if name == "" {
		name = fmt.Sprintf("mesh_%d", primIndex)
	}
	if primIndex > 0 {
		name = fmt.Sprintf("%s_prim%d", name, primIndex)
	}
	out.Name = name

	return out, nil
}

// readColorAccessor reads a color accessor, handling the formats glTF
// permits: VEC3 or VEC4, float or normalized integer components.
func (e *gltfMeshExtractorImpl) readColorAccessor(accessorIndex int) ([][4]float32, error) {
	doc := e.parser.Document()
	if accessorIndex < 0 || accessorIndex >= len(doc.Accessors) {
		return nil, fmt.Errorf("color accessor index %d out of range", accessorIndex)
	}
	accessor := &doc.Accessors[accessorIndex]

	switch accessor.Type {
	case gltfAccessorTypeVec4:
		if accessor.ComponentType == gltfComponentTypeFloat {
			return e.parser.ReadVec4Accessor(accessorIndex)
		}
	case gltfAccessorTypeVec3:
		if accessor.ComponentType == gltfComponentTypeFloat {
			rgb, err := e.parser.ReadVec3Accessor(accessorIndex)
			if err != nil {
				return nil, err
			}
			out := make([][4]float32, len(rgb))
			for i, c := range rgb {
				out[i] = [4]float32{c[0], c[1], c[2], 1}
			}
			return out, nil
		}
	}

	// normalized integer variants decode through the raw accessor bytes
	raw, err := e.parser.ReadAccessorData(accessorIndex)
	if err != nil {
		return nil, err
	}
	components := gltfAccessorTypeComponentCount(accessor.Type)
	componentSize := gltfComponentTypeSize(accessor.ComponentType)
	if components < 3 || componentSize == 0 {
		return nil, fmt.Errorf("unsupported color accessor type %s/%d", accessor.Type, accessor.ComponentType)
	}

	out := make([][4]float32, accessor.Count)
	for i := 0; i < accessor.Count; i++ {
		out[i] = [4]float32{0, 0, 0, 1}
		for c := 0; c < components && c < 4; c++ {
			offset := (i*components + c) * componentSize
			switch accessor.ComponentType {
			case gltfComponentTypeUnsignedByte:
				out[i][c] = float32(raw[offset]) / 255
			case gltfComponentTypeUnsignedShort:
				v := uint16(raw[offset]) | uint16(raw[offset+1])<<8
				out[i][c] = float32(v) / 65535
			default:
				return nil, fmt.Errorf("unsupported color component type %d", accessor.ComponentType)
			}
		}
	}
	return out, nil
}

// gltfCalculateBoundingBox computes the axis-aligned bounding box of a
// position stream.
func gltfCalculateBoundingBox(positions [][3]float32) ([3]float32, [3]float32) {
	if len(positions) == 0 {
		return [3]float32{}, [3]float32{}
	}
	min := positions[0]
	max := positions[0]
	for _, p := range positions[1:] {
		min = common.Vec3Min(min, p)
		max = common.Vec3Max(max, p)
	}
	return min, max
}
