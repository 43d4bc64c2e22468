package binarizer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/loader"
)

// binarizer is the implementation of the Binarizer interface.
type binarizer struct {
	rawRoot      string
	compiledRoot string
	workers      int
	pool         worker.DynamicWorkerPool
}

// Binarizer compiles raw assets (glTF files and their companions) under the
// raw asset root into typed binary blobs under the compiled asset root.
// Paths inside blobs are rewritten from the raw root to the compiled root.
// Compilation is incremental: a blob newer than its source is skipped.
type Binarizer interface {
	// CompileFile compiles one glTF file into mesh, material, texture,
	// object, camera and scene blobs. Primitives compile in parallel on the
	// worker pool and join before the scene blob is written.
	//
	// Parameters:
	//   - path: the glTF file path under the raw asset root
	//
	// Returns:
	//   - string: the compiled scene blob path
	//   - error: error if compilation fails
	CompileFile(path string) (string, error)

	// CompileAll walks the raw asset root and compiles every glTF file.
	//
	// Returns:
	//   - error: the first walk error; per-file failures are logged and skipped
	CompileAll() error

	// CompiledPath maps a raw asset path to its compiled blob path.
	//
	// Parameters:
	//   - rawPath: the path under the raw asset root
	//   - extension: the compiled blob extension
	//
	// Returns:
	//   - string: the path under the compiled asset root
	CompiledPath(rawPath, extension string) string
}

var _ Binarizer = &binarizer{}

// BinarizerOption is a functional option applied during NewBinarizer.
type BinarizerOption func(*binarizer)

// WithWorkers sets the worker pool size used for primitive compilation.
//
// Parameters:
//   - count: the worker count; values below 1 fall back to 1
//
// Returns:
//   - BinarizerOption: a function that applies the worker option
func WithWorkers(count int) BinarizerOption {
	return func(b *binarizer) {
		if count < 1 {
			count = 1
		}
		b.workers = count
	}
}

// NewBinarizer creates a Binarizer compiling from rawRoot into compiledRoot.
//
// Parameters:
//   - rawRoot: the raw asset directory
//   - compiledRoot: the compiled blob directory
//   - opts: functional options
//
// Returns:
//   - Binarizer: the new binarizer
func NewBinarizer(rawRoot, compiledRoot string, opts ...BinarizerOption) Binarizer {
	b := &binarizer{
		rawRoot:      rawRoot,
		compiledRoot: compiledRoot,
		workers:      4,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.pool = worker.NewDynamicWorkerPool(b.workers, 256, time.Second)
	return b
}

func (b *binarizer) CompiledPath(rawPath, extension string) string {
	rel, err := filepath.Rel(b.rawRoot, rawPath)
	if err != nil {
		rel = filepath.Base(rawPath)
	}
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(b.compiledRoot, stem+extension)
}

// needsCompile reports whether the source is newer than the compiled blob.
// Binarization tasks are not cancellable once started, but this check makes
// them skippable.
func needsCompile(sourcePath, compiledPath string) bool {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return false
	}
	compiledInfo, err := os.Stat(compiledPath)
	if err != nil {
		return true
	}
	return sourceInfo.ModTime().After(compiledInfo.ModTime())
}

// writeBlob writes blob bytes, creating parent directories.
func writeBlob(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (b *binarizer) CompileAll() error {
	return filepath.Walk(b.rawRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".gltf" && ext != ".glb" {
			return nil
		}
		if _, err := b.CompileFile(path); err != nil {
			log.Printf("[Binarizer] %s failed: %v", path, err)
		}
		return nil
	})
}

func (b *binarizer) CompileFile(path string) (string, error) {
	scenePath := b.CompiledPath(path, graphics.SceneDataExtension)
	if !needsCompile(path, scenePath) {
		return scenePath, nil
	}
	start := time.Now()

	imported, err := loader.NewImporter().Import(path)
	if err != nil {
		return "", err
	}

	materialPaths := b.compileMaterials(path, imported)

	// one compile task per primitive; results join before nodes are written
	type meshResult struct {
		meshIndex int
		primIndex int
		blobPath  string
		err       error
	}
	var mu sync.Mutex
	var results []meshResult
	var wg sync.WaitGroup
	taskID := 0
	for meshIndex, primitives := range imported.Meshes {
		for primIndex := range primitives {
			wg.Add(1)
			prim := &imported.Meshes[meshIndex][primIndex]
			mi, pi, id := meshIndex, primIndex, taskID
			taskID++
			b.pool.SubmitTask(worker.Task{
				ID: id,
				Do: func() (any, error) {
					defer wg.Done()
					materialPath := ""
					if prim.MaterialIndex >= 0 && prim.MaterialIndex < len(materialPaths) {
						materialPath = materialPaths[prim.MaterialIndex]
					}
					blobPath, err := b.compilePrimitive(path, prim, materialPath)
					mu.Lock()
					results = append(results, meshResult{meshIndex: mi, primIndex: pi, blobPath: blobPath, err: err})
					mu.Unlock()
					return nil, nil
				},
			})
		}
	}
	wg.Wait()

	meshBlobs := make(map[int][]string)
	for _, r := range results {
		if r.err != nil {
			log.Printf("[Binarizer] primitive %d of mesh %d skipped: %v", r.primIndex, r.meshIndex, r.err)
			continue
		}
		meshBlobs[r.meshIndex] = append(meshBlobs[r.meshIndex], r.blobPath)
	}

	// per-node object blobs; children reference object blob paths, never pointers
	objectPaths := make([]string, len(imported.Nodes))
	for i := range imported.Nodes {
		objectPaths[i] = b.CompiledPath(path, "") + fmt.Sprintf("_%s%s", sanitizeName(imported.Nodes[i].Name), graphics.ObjectDataExtension)
	}
	cameraPaths := make([]string, len(imported.Cameras))
	for i := range imported.Cameras {
		cameraPaths[i] = b.CompiledPath(path, "") + fmt.Sprintf("_%s%s", sanitizeName(imported.Cameras[i].Name), graphics.CameraDataExtension)
		camera := &graphics.CameraData{
			Fov:  imported.Cameras[i].FovDegrees,
			Near: imported.Cameras[i].Near,
			Far:  imported.Cameras[i].Far,
		}
		if err := writeBlob(cameraPaths[i], camera.Marshal()); err != nil {
			return "", err
		}
	}

	for i := range imported.Nodes {
		node := &imported.Nodes[i]
		object := &graphics.ObjectData{Transform: node.Transform}
		if node.MeshIndex >= 0 {
			object.Components = append(object.Components, meshBlobs[node.MeshIndex]...)
		}
		if node.CameraIndex >= 0 && node.CameraIndex < len(cameraPaths) {
			object.Components = append(object.Components, cameraPaths[node.CameraIndex])
		}
		for _, child := range node.Children {
			if child >= 0 && child < len(objectPaths) {
				object.Children = append(object.Children, objectPaths[child])
			}
		}
		if err := writeBlob(objectPaths[i], object.Marshal()); err != nil {
			return "", err
		}
	}

	scene := &graphics.SceneData{}
	for _, root := range imported.Roots {
		if root >= 0 && root < len(objectPaths) {
			scene.Objects = append(scene.Objects, objectPaths[root])
		}
	}
	scene.Cameras = cameraPaths
	if err := writeBlob(scenePath, scene.Marshal()); err != nil {
		return "", err
	}

	log.Printf("[Binarizer] %s compiled in %v (%d meshes, %d materials, %d objects)",
		filepath.Base(path), time.Since(start).Round(time.Millisecond), len(meshBlobs), len(imported.Materials), len(imported.Nodes))
	return scenePath, nil
}

// compileMaterials writes one material blob per document material and copies
// referenced textures next to them, returning compiled material paths
// indexed like the document material list.
func (b *binarizer) compileMaterials(sourcePath string, imported *loader.ImportedScene) []string {
	paths := make([]string, len(imported.Materials))
	for i, material := range imported.Materials {
		name := material.Name
		if name == "" {
			name = fmt.Sprintf("material_%d", i)
		}
		blobPath := b.CompiledPath(sourcePath, "") + fmt.Sprintf("_%s%s", sanitizeName(name), graphics.MaterialDataExtension)
		paths[i] = blobPath

		data := &graphics.MaterialData{
			BaseColor:         material.BaseColor,
			EmissiveColor:     material.EmissiveColor,
			DiffuseColor:      [4]float32{1, 1, 1, 1},
			SpecularColor:     [4]float32{1, 1, 1, 1},
			RoughnessFactor:   material.Roughness,
			MetallicFactor:    material.Metallic,
			AlphaCutoff:       material.AlphaCutoff,
			OcclusionStrength: material.OcclusionStrength,
			AlphaMode:         material.AlphaMode,
			TexcoordsSet:      material.TexcoordsSet,
		}
		for slot, texture := range material.Textures {
			if texture == nil {
				continue
			}
			texturePath, err := b.compileTexture(sourcePath, texture, slot)
			if err != nil {
				log.Printf("[Binarizer] material %s texture slot %d skipped: %v", name, slot, err)
				continue
			}
			data.Textures[slot] = texturePath
		}
		if err := writeBlob(blobPath, data.Marshal()); err != nil {
			log.Printf("[Binarizer] material %s failed: %v", name, err)
		}
	}
	return paths
}

// compileTexture decodes a texture to RGBA and writes it as a texture blob:
// width, height, then raw pixels.
func (b *binarizer) compileTexture(sourcePath string, texture *common.ImportedTexture, slot int) (string, error) {
	name := texture.Name
	if name == "" {
		name = fmt.Sprintf("texture_%d", slot)
	}
	blobPath := b.CompiledPath(sourcePath, "") + fmt.Sprintf("_%s%s", sanitizeName(name), graphics.TextureDataExtension)
	if texture.Path != "" && !needsCompile(texture.Path, blobPath) {
		return blobPath, nil
	}

	pixels, width, height, err := texture.Decode()
	if err != nil {
		return "", err
	}
	blob := make([]byte, 0, 8+len(pixels))
	blob = append(blob,
		byte(width), byte(width>>8), byte(width>>16), byte(width>>24),
		byte(height), byte(height>>8), byte(height>>16), byte(height>>24))
	blob = append(blob, pixels...)
	if err := writeBlob(blobPath, blob); err != nil {
		return "", err
	}
	return blobPath, nil
}

// compilePrimitive runs the full geometry pipeline on one primitive and
// writes its mesh blob.
func (b *binarizer) compilePrimitive(sourcePath string, prim *loader.ImportedPrimitive, materialPath string) (string, error) {
	blobPath := b.CompiledPath(sourcePath, "") + fmt.Sprintf("_%s%s", sanitizeName(prim.Name), graphics.MeshDataExtension)
	if !needsCompile(sourcePath, blobPath) {
		return blobPath, nil
	}
	if len(prim.Positions) == 0 || len(prim.Indices) == 0 {
		return "", fmt.Errorf("primitive %s has no drawable geometry", prim.Name)
	}

	vertices := make([]Vertex, len(prim.Positions))
	for i := range prim.Positions {
		vertices[i].Position = prim.Positions[i]
		vertices[i].Color = [4]float32{1, 1, 1, 1}
		if prim.Colors != nil {
			vertices[i].Color = prim.Colors[i]
		}
		if prim.Normals != nil {
			vertices[i].Normal = prim.Normals[i]
		}
		if prim.Tangents != nil {
			vertices[i].Tangent = prim.Tangents[i]
		}
		for set := 0; set < prim.UvSetCount; set++ {
			if prim.Uvs[set] != nil {
				vertices[i].Uv[set] = prim.Uvs[set][i]
			}
		}
	}

	optimizedVertices, optimizedIndices := OptimizeMesh(vertices, prim.Indices)
	meshlets, meshletIndices := BuildMeshlets(optimizedVertices, optimizedIndices)
	if len(meshlets) == 0 {
		return "", fmt.Errorf("primitive %s produced no meshlets", prim.Name)
	}
	allMeshlets, allIndices := BuildLodDag(optimizedVertices, meshlets, meshletIndices)

	meshData := PackMeshData(prim, optimizedVertices, allMeshlets, allIndices)
	meshData.Material = materialPath
	if err := writeBlob(blobPath, meshData.Marshal()); err != nil {
		return "", err
	}
	return blobPath, nil
}

// PackMeshData packs optimized geometry into the on-disk MeshData streams:
// positions 10:10:10:2 around the primitive AABB, colors rgba8, normals and
// tangents 10:10:10:2, uvs half2, with per-vertex stream offsets.
//
// Parameters:
//   - prim: the source primitive, read for its attribute layout and bounds
//   - vertices: the optimized vertex stream
//   - meshlets: every LOD level's meshlets
//   - indices: the accumulated index stream
//
// Returns:
//   - *graphics.MeshData: the packed mesh
func PackMeshData(prim *loader.ImportedPrimitive, vertices []Vertex, meshlets []graphics.MeshletData, indices []uint32) *graphics.MeshData {
	m := &graphics.MeshData{
		VertexLayout: graphics.VertexAttributeHasPosition,
		AabbMin:      prim.AabbMin,
		AabbMax:      prim.AabbMax,
		Indices:      indices,
		Meshlets:     meshlets,
	}
	if prim.Colors != nil {
		m.VertexLayout |= graphics.VertexAttributeHasColor
	}
	if prim.Normals != nil {
		m.VertexLayout |= graphics.VertexAttributeHasNormal
	}
	if prim.Tangents != nil {
		m.VertexLayout |= graphics.VertexAttributeHasTangent
	}
	for set := 0; set < prim.UvSetCount; set++ {
		m.VertexLayout |= graphics.VertexAttributeHasUV1 << set
	}

	for i := range vertices {
		v := &vertices[i]
		local := common.NormalizeToAabb(v.Position, m.AabbMin, m.AabbMax)
		m.Positions = append(m.Positions, common.PackSnorm10(local[0], local[1], local[2]))
		m.Colors = append(m.Colors, common.PackRgba8(v.Color))

		record := graphics.DrawVertex{
			PositionAndColorOffset: uint32(i),
			NormalOffset:           -1,
			TangentOffset:          -1,
		}
		for j := range record.UvOffset {
			record.UvOffset[j] = -1
		}
		if prim.Normals != nil {
			record.NormalOffset = int32(len(m.Normals))
			m.Normals = append(m.Normals, common.PackSnorm10(v.Normal[0], v.Normal[1], v.Normal[2]))
		}
		if prim.Tangents != nil {
			record.TangentOffset = int32(len(m.Tangents))
			m.Tangents = append(m.Tangents, common.PackSnorm10(v.Tangent[0], v.Tangent[1], v.Tangent[2]))
		}
		for set := 0; set < prim.UvSetCount; set++ {
			record.UvOffset[set] = int32(len(m.Uvs))
			m.Uvs = append(m.Uvs, common.PackHalf2(v.Uv[set][0], v.Uv[set][1]))
		}
		m.Vertices = append(m.Vertices, record)
	}
	return m
}

// sanitizeName makes an asset name filesystem-safe.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
