package binding

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestOrderedPushAccepted(t *testing.T) {
	b := NewBuilder()
	if err := b.AddBuffer(0, 0, nil, BufferOptions{Stage: wgpu.ShaderStageCompute, IsStorage: true}); err != nil {
		t.Fatalf("push (0,0): %v", err)
	}
	if err := b.AddBuffer(0, 1, nil, BufferOptions{Stage: wgpu.ShaderStageCompute, IsStorage: true, ReadOnly: true}); err != nil {
		t.Fatalf("push (0,1): %v", err)
	}
	if err := b.AddDefaultSampler(1, 0, nil, wgpu.ShaderStageFragment); err != nil {
		t.Fatalf("push (1,0): %v", err)
	}
	if !b.IsDirty() {
		t.Fatalf("builder not dirty after pushes")
	}
}

func TestOutOfOrderPushRejected(t *testing.T) {
	b := NewBuilder()
	if err := b.AddBuffer(1, 0, nil, BufferOptions{}); err == nil {
		t.Fatalf("group skip accepted")
	}
	if err := b.AddBuffer(0, 2, nil, BufferOptions{}); err == nil {
		t.Fatalf("binding skip accepted")
	}
	if err := b.AddBuffer(0, 0, nil, BufferOptions{}); err != nil {
		t.Fatalf("valid push rejected after failures: %v", err)
	}
}

func TestRebuildIdempotentWhenClean(t *testing.T) {
	b := NewBuilder()
	if err := b.AddBuffer(0, 0, nil, BufferOptions{Stage: wgpu.ShaderStageCompute, IsStorage: true}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := b.Build(nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if b.IsDirty() {
		t.Fatalf("builder dirty after Build")
	}

	// identical re-push must not flip dirty
	if err := b.AddBuffer(0, 0, nil, BufferOptions{Stage: wgpu.ShaderStageCompute, IsStorage: true}); err != nil {
		t.Fatalf("re-push: %v", err)
	}
	if b.IsDirty() {
		t.Fatalf("identical entry flipped dirty")
	}
}

func TestChangedOptionsFlipDirty(t *testing.T) {
	b := NewBuilder()
	b.AddBuffer(0, 0, nil, BufferOptions{Stage: wgpu.ShaderStageCompute, IsStorage: true})
	b.Build(nil)

	b.AddBuffer(0, 0, nil, BufferOptions{Stage: wgpu.ShaderStageCompute, IsStorage: true, ReadOnly: true})
	if !b.IsDirty() {
		t.Fatalf("changed options did not flip dirty")
	}
}

func TestTextureArrayPointwiseComparison(t *testing.T) {
	b := NewBuilder()
	views := []*wgpu.TextureView{nil, nil}
	b.AddTextureArray(0, 0, views, wgpu.ShaderStageFragment)
	b.Build(nil)

	// same pointwise content: clean
	b.AddTextureArray(0, 0, []*wgpu.TextureView{nil, nil}, wgpu.ShaderStageFragment)
	if b.IsDirty() {
		t.Fatalf("identical view list flipped dirty")
	}
	// different length: dirty
	b.AddTextureArray(0, 0, []*wgpu.TextureView{nil, nil, nil}, wgpu.ShaderStageFragment)
	if !b.IsDirty() {
		t.Fatalf("changed view list did not flip dirty")
	}
}

func TestSetBufferOnMissingSlotFails(t *testing.T) {
	b := NewBuilder()
	if err := b.SetBuffer(0, 0, nil); err == nil {
		t.Fatalf("SetBuffer on empty table succeeded")
	}
	b.AddDefaultSampler(0, 0, nil, wgpu.ShaderStageFragment)
	if err := b.SetBuffer(0, 0, nil); err == nil {
		t.Fatalf("SetBuffer on sampler slot succeeded")
	}
}
