package generate

import "testing"

func TestFingerprintStableAcrossKeyOrder(t *testing.T) {
	a := Fingerprint("replicate/txt2img", map[string]any{
		"width":  1024,
		"height": 768,
		"seed":   42,
	})
	b := Fingerprint("replicate/txt2img", map[string]any{
		"seed":   42,
		"height": 768,
		"width":  1024,
	})
	if a != b {
		t.Fatalf("expected identical fingerprints, got %s and %s", a, b)
	}
}

func TestFingerprintVariesByParameter(t *testing.T) {
	a := Fingerprint("replicate/txt2img", map[string]any{"seed": 42})
	b := Fingerprint("replicate/txt2img", map[string]any{"seed": 43})
	if a == b {
		t.Fatal("expected different fingerprints for different parameters")
	}
}

func TestFingerprintVariesByOperation(t *testing.T) {
	params := map[string]any{"seed": 42}
	a := Fingerprint("replicate/txt2img", params)
	b := Fingerprint("replicate/img2img", params)
	if a == b {
		t.Fatal("expected different fingerprints for different operations")
	}
}

func TestFingerprintNestedMaps(t *testing.T) {
	a := Fingerprint("op", map[string]any{
		"nested": map[string]any{"x": 1, "y": 2},
	})
	b := Fingerprint("op", map[string]any{
		"nested": map[string]any{"y": 2, "x": 1},
	})
	if a != b {
		t.Fatalf("expected identical fingerprints for nested maps, got %s and %s", a, b)
	}
}

func TestRequestFingerprintIncludesPrompt(t *testing.T) {
	r1 := &Request{Vendor: "replicate", Operation: "txt2img", Prompt: "a cat"}
	r2 := &Request{Vendor: "replicate", Operation: "txt2img", Prompt: "a dog"}
	if r1.Fingerprint() == r2.Fingerprint() {
		t.Fatal("expected prompt to affect the fingerprint")
	}
}
