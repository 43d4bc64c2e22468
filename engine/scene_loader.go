package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/resources"
	"github.com/Carmen-Shannon/onyx-go/engine/texture"
)

// sceneLoader walks compiled scene blobs and feeds resource events into the
// stream, resolving shared materials and textures by path so two meshes
// referencing the same material blob share one id.
type sceneLoader struct {
	events resources.EventStream
	atlas  texture.AtlasManager

	// ids maps blob paths to stable ids; a path compiles to the same id for
	// the process lifetime so repeated loads overwrite instead of duplicate
	ids map[string]common.Uid

	loadedMaterials map[common.Uid][graphics.TextureTypeCount]common.Uid
}

func newSceneLoader(events resources.EventStream, atlas texture.AtlasManager) *sceneLoader {
	return &sceneLoader{
		events:          events,
		atlas:           atlas,
		ids:             make(map[string]common.Uid),
		loadedMaterials: make(map[common.Uid][graphics.TextureTypeCount]common.Uid),
	}
}

// idForPath derives a stable id from a blob path.
func (l *sceneLoader) idForPath(path string) common.Uid {
	if id, ok := l.ids[path]; ok {
		return id
	}
	sum := sha256.Sum256([]byte(path))
	id := common.UidFromUint64(
		binary.LittleEndian.Uint64(sum[0:8]),
		binary.LittleEndian.Uint64(sum[8:16]),
	)
	l.ids[path] = id
	return id
}

// LoadScene reads a compiled scene blob and pushes Created events for every
// referenced texture, material, mesh, light and object, in dependency order.
//
// Parameters:
//   - e: the engine whose event stream receives the resources
//   - path: the .scene_data blob path
//
// Returns:
//   - error: an error if the scene blob cannot be read
func (e *engine) LoadScene(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read scene %s: %w", path, err)
	}
	decoded, err := resources.Deserialize(graphics.SceneDataExtension, data)
	if err != nil {
		return err
	}
	scene := decoded.(*graphics.SceneData)

	loader := newSceneLoader(e.events, e.atlas)
	for _, objectPath := range scene.Objects {
		loader.loadObject(objectPath)
	}
	for _, lightPath := range scene.Lights {
		loader.loadLight(lightPath)
	}
	return nil
}

func (l *sceneLoader) loadObject(path string) {
	decoded, err := readBlob(path, graphics.ObjectDataExtension)
	if err != nil {
		log.Printf("[Scene] object %s skipped: %v", path, err)
		return
	}
	object := decoded.(*graphics.ObjectData)
	objectId := l.idForPath(path)
	transform := object.Transform
	l.events.Push(resources.Event{
		Kind:    resources.ResourceKindObject,
		Type:    resources.EventCreated,
		Id:      objectId,
		Payload: &transform,
	})

	for _, componentPath := range object.Components {
		switch filepath.Ext(componentPath) {
		case graphics.MeshDataExtension:
			l.loadMesh(componentPath, object.Transform)
		case graphics.LightDataExtension:
			l.loadLight(componentPath)
		}
	}
	// children are path references, never pointers; recursion bottoms out
	// on missing files
	for _, childPath := range object.Children {
		l.loadObject(childPath)
	}
}

func (l *sceneLoader) loadMesh(path string, transform [16]float32) {
	decoded, err := readBlob(path, graphics.MeshDataExtension)
	if err != nil {
		log.Printf("[Scene] mesh %s skipped: %v", path, err)
		return
	}
	mesh := decoded.(*graphics.MeshData)

	materialId := common.InvalidUid
	if mesh.Material != "" {
		materialId = l.loadMaterial(mesh.Material)
	}
	l.events.Push(resources.Event{
		Kind: resources.ResourceKindMesh,
		Type: resources.EventCreated,
		Id:   l.idForPath(path),
		Payload: &graphics.MeshPayload{
			Data:       mesh,
			MaterialId: materialId,
			Matrix:     transform,
			Flags:      graphics.MeshFlagsVisible | graphics.MeshFlagsOpaque,
			DrawIndex:  -1,
		},
	})
}

func (l *sceneLoader) loadMaterial(path string) common.Uid {
	materialId := l.idForPath(path)
	if _, ok := l.loadedMaterials[materialId]; ok {
		return materialId
	}
	decoded, err := readBlob(path, graphics.MaterialDataExtension)
	if err != nil {
		log.Printf("[Scene] material %s skipped: %v", path, err)
		return common.InvalidUid
	}
	material := decoded.(*graphics.MaterialData)

	var textureIds [graphics.TextureTypeCount]common.Uid
	for slot, texturePath := range material.Textures {
		if texturePath == "" {
			continue
		}
		textureIds[slot] = l.loadTexture(texturePath)
	}
	l.loadedMaterials[materialId] = textureIds
	l.events.Push(resources.Event{
		Kind:    resources.ResourceKindMaterial,
		Type:    resources.EventCreated,
		Id:      materialId,
		Payload: &graphics.MaterialPayload{Data: material, TextureIds: textureIds},
	})
	return materialId
}

// loadTexture reads a compiled texture blob (width, height, raw RGBA),
// places it into the atlas and pushes its placement event.
func (l *sceneLoader) loadTexture(path string) common.Uid {
	textureId := l.idForPath(path)
	if _, ok := l.atlas.Info(textureId); ok {
		return textureId
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) < 8 {
		log.Printf("[Scene] texture %s skipped: %v", path, err)
		return common.InvalidUid
	}
	width := binary.LittleEndian.Uint32(data[0:4])
	height := binary.LittleEndian.Uint32(data[4:8])
	info, err := l.atlas.Allocate(textureId, texture.AtlasFormatColor, &common.TextureStagingData{
		Pixels: data[8:],
		Width:  width,
		Height: height,
	})
	if err != nil {
		log.Printf("[Scene] texture %s rejected by the atlas: %v", path, err)
		return common.InvalidUid
	}
	l.events.Push(resources.Event{
		Kind:    resources.ResourceKindTexture,
		Type:    resources.EventCreated,
		Id:      textureId,
		Payload: &graphics.TexturePayload{Info: info},
	})
	return textureId
}

func (l *sceneLoader) loadLight(path string) {
	decoded, err := readBlob(path, graphics.LightDataExtension)
	if err != nil {
		log.Printf("[Scene] light %s skipped: %v", path, err)
		return
	}
	light := decoded.(*graphics.LightAssetData)
	l.events.Push(resources.Event{
		Kind:    resources.ResourceKindLight,
		Type:    resources.EventCreated,
		Id:      l.idForPath(path),
		Payload: &graphics.LightPayload{Data: light.Light},
	})
}

// readBlob loads and decodes one compiled blob through the registry.
func readBlob(path, extension string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return resources.Deserialize(extension, data)
}
