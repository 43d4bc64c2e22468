package common

import (
	"math"
	"testing"
)

func TestSnorm10RoundTrip(t *testing.T) {
	values := [][3]float32{
		{0, 0, 0},
		{1, -1, 0.5},
		{-0.25, 0.75, -0.999},
	}
	for _, v := range values {
		decoded := UnpackSnorm10(PackSnorm10(v[0], v[1], v[2]))
		for i := 0; i < 3; i++ {
			if diff := float64(decoded[i] - v[i]); math.Abs(diff) > 1.0/511+1e-6 {
				t.Errorf("component %d: %f -> %f, error %f", i, v[i], decoded[i], diff)
			}
		}
	}
}

func TestSnorm10ClampsOutOfRange(t *testing.T) {
	decoded := UnpackSnorm10(PackSnorm10(2, -2, 0))
	if decoded[0] != 1 || decoded[1] != -1 {
		t.Fatalf("out-of-range input not clamped: %v", decoded)
	}
}

func TestRgba8RoundTrip(t *testing.T) {
	c := [4]float32{0.25, 0.5, 0.75, 1}
	decoded := UnpackRgba8(PackRgba8(c))
	for i := 0; i < 4; i++ {
		if diff := float64(decoded[i] - c[i]); math.Abs(diff) > 1.0/255+1e-6 {
			t.Errorf("channel %d: %f -> %f", i, c[i], decoded[i])
		}
	}
	if PackRgba8([4]float32{1, 1, 1, 1}) != 0xFFFFFFFF {
		t.Errorf("opaque white did not pack to all ones")
	}
}

func TestHalf2RoundTrip(t *testing.T) {
	pairs := [][2]float32{{0, 0}, {1, -1}, {0.5, 1024}, {-0.125, 65504}}
	for _, p := range pairs {
		decoded := UnpackHalf2(PackHalf2(p[0], p[1]))
		for i := 0; i < 2; i++ {
			tolerance := math.Max(math.Abs(float64(p[i]))/1024, 1e-4)
			if diff := math.Abs(float64(decoded[i] - p[i])); diff > tolerance {
				t.Errorf("pair %v component %d: got %f", p, i, decoded[i])
			}
		}
	}
}

func TestAabbNormalizeRoundTrip(t *testing.T) {
	min := [3]float32{-2, 0, 5}
	max := [3]float32{2, 4, 9}
	p := [3]float32{1, 3, 6}
	decoded := DenormalizeFromAabb(NormalizeToAabb(p, min, max), min, max)
	for i := 0; i < 3; i++ {
		if diff := math.Abs(float64(decoded[i] - p[i])); diff > 1e-5 {
			t.Errorf("axis %d: %f -> %f", i, p[i], decoded[i])
		}
	}
}

func TestFrustumAABBTest(t *testing.T) {
	// standard perspective looking down -Z from the origin
	proj := make([]float32, 16)
	view := make([]float32, 16)
	viewProj := make([]float32, 16)
	Perspective(proj, 1.0, 1.0, 0.1, 100)
	LookAt(view, 0, 0, 0, 0, 0, -1, 0, 1, 0)
	Mul4(viewProj, proj, view)
	f := ExtractFrustumFromMatrix(viewProj)

	if !f.IntersectsAABB([3]float32{-1, -1, -10}, [3]float32{1, 1, -5}) {
		t.Errorf("box in front of the camera reported outside")
	}
	if f.IntersectsAABB([3]float32{-1, -1, 5}, [3]float32{1, 1, 10}) {
		t.Errorf("box behind the camera reported inside")
	}
	if f.IntersectsAABB([3]float32{100, 100, -10}, [3]float32{101, 101, -5}) {
		t.Errorf("box far off-axis reported inside")
	}
}
