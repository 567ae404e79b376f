package service

import (
	"testing"

	"aig-pipeline-be/pkg/pipeline"
)

func TestFingerprint(t *testing.T) {
	base := pipeline.ConstructInput{
		ConstructName:       "Grit",
		ConstructDefinition: "Perseverance and passion for long-term goals.",
		DimensionInfo:       "Target: grit. Orbiting: conscientiousness, resilience.",
	}

	if got := Fingerprint(base); got != Fingerprint(base) {
		t.Fatal("fingerprint must be deterministic")
	}

	// Case and surrounding whitespace in the name must not change identity.
	variant := base
	variant.ConstructName = "  gRiT  "
	if Fingerprint(base) != Fingerprint(variant) {
		t.Error("name normalization should ignore case and whitespace")
	}

	// A different definition is a different construct.
	other := base
	other.ConstructDefinition = "The tendency to finish what one starts."
	if Fingerprint(base) == Fingerprint(other) {
		t.Error("distinct definitions must yield distinct fingerprints")
	}

	if len(Fingerprint(base)) != 64 {
		t.Errorf("expected full sha256 hex, got %d chars", len(Fingerprint(base)))
	}
}

func TestConstructPresets(t *testing.T) {
	names := PresetNames()
	if len(names) == 0 {
		t.Fatal("no presets registered")
	}
	for _, name := range names {
		preset := constructPresets[name]
		if preset.ConstructName == "" || preset.ConstructDefinition == "" || preset.DimensionInfo == "" {
			t.Errorf("preset %q is incomplete: %+v", name, preset)
		}
	}
	if _, ok := constructPresets["grit"]; !ok {
		t.Error("expected a grit preset")
	}
}
