package graphics

import "testing"

func TestMaterialBlobRoundTrip(t *testing.T) {
	m := &MaterialData{
		Pipeline:          "pipelines/pbr.pipeline_data",
		BaseColor:         [4]float32{1, 0.5, 0.25, 1},
		EmissiveColor:     [4]float32{0.1, 0.2, 0.3, 1},
		DiffuseColor:      [4]float32{1, 1, 1, 1},
		SpecularColor:     [4]float32{0.5, 0.5, 0.5, 1},
		RoughnessFactor:   0.8,
		MetallicFactor:    0.2,
		AlphaCutoff:       0.5,
		OcclusionStrength: 1,
		AlphaMode:         AlphaModeMask,
	}
	m.Textures[TextureTypeBaseColor] = "textures/albedo.texture_data"
	m.TexcoordsSet[TextureTypeNormal] = 1

	decoded, err := UnmarshalMaterialData(m.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalMaterialData: %v", err)
	}
	if *decoded != *m {
		t.Fatalf("material changed across marshal:\n%+v\n%+v", decoded, m)
	}
}

func TestObjectAndSceneBlobRoundTrip(t *testing.T) {
	o := &ObjectData{
		Components: []string{"a.mesh_data", "b.light_data"},
		Children:   []string{"child.object_data"},
	}
	o.Transform[0], o.Transform[5], o.Transform[10], o.Transform[15] = 1, 1, 1, 1

	decodedObject, err := UnmarshalObjectData(o.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalObjectData: %v", err)
	}
	if decodedObject.Transform != o.Transform {
		t.Errorf("transform changed across marshal")
	}
	if len(decodedObject.Components) != 2 || len(decodedObject.Children) != 1 {
		t.Errorf("references changed across marshal")
	}

	s := &SceneData{
		Objects: []string{"root.object_data"},
		Cameras: []string{"main.camera_data"},
	}
	decodedScene, err := UnmarshalSceneData(s.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalSceneData: %v", err)
	}
	if len(decodedScene.Objects) != 1 || len(decodedScene.Cameras) != 1 || decodedScene.Lights != nil {
		t.Errorf("scene references changed across marshal")
	}
}

func TestPipelineBlobRoundTrip(t *testing.T) {
	p := &PipelineData{
		Name:              "visibility",
		VertexShader:      "shaders/visibility_vs.wgsl",
		FragmentShader:    "shaders/visibility_fs.wgsl",
		CullMode:          2,
		PolygonMode:       0,
		BlendEnabled:      false,
		DepthWriteEnabled: true,
		MeshFlagsFilter:   uint32(MeshFlagsVisible | MeshFlagsOpaque),
	}
	decoded, err := UnmarshalPipelineData(p.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalPipelineData: %v", err)
	}
	if *decoded != *p {
		t.Fatalf("pipeline changed across marshal:\n%+v\n%+v", decoded, p)
	}
}

func TestBlobRejectsBadMagicAndTruncation(t *testing.T) {
	m := &MaterialData{}
	blob := m.Marshal()

	bad := append([]byte(nil), blob...)
	bad[0] ^= 0xFF
	if _, err := UnmarshalMaterialData(bad); err == nil {
		t.Errorf("corrupted magic accepted")
	}
	if _, err := UnmarshalMaterialData(blob[:len(blob)/2]); err == nil {
		t.Errorf("truncated blob accepted")
	}
}
