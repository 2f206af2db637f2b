package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"voxelmesh.ai/internal/render/gpu"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("got %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if c := got.MeshCapacity(); c.Vertices != 49152 || c.Indices != 73728 {
		t.Fatalf("MeshCapacity = %+v", c)
	}
}

func TestLoadRepoConfig(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "render.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Worldgen.Generator == "" || got.ViewRadius <= 0 {
		t.Fatalf("config = %+v", got)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	got, err := Parse([]byte(`
voxel_size: 0.5
view_radius: 2
worldgen:
  generator: " Checkerboard "
  seed: 7
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.VoxelSize != 0.5 || got.ViewRadius != 2 || got.Worldgen.Generator != "checkerboard" || got.Worldgen.Seed != 7 {
		t.Fatalf("got %+v", got)
	}
	if got.Worldgen.FeatureScale != Defaults().Worldgen.FeatureScale {
		t.Fatalf("unset field lost its default: %+v", got.Worldgen)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown field":  "voxel_sise: 1\n",
		"negative size":  "voxel_size: -1\n",
		"bad mode":       "capacity:\n  mode: grow\n",
		"string integer": "view_radius: far\n",
	} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestExplicitCapacityBelowWorstCase(t *testing.T) {
	_, err := Parse([]byte("capacity:\n  mode: explicit\n  max_verts: 4096\n  max_indxs: 6144\n"))
	if !errors.Is(err, gpu.ErrCapacityPlan) {
		t.Fatalf("expected ErrCapacityPlan, got %v", err)
	}
	got, err := Parse([]byte("capacity:\n  mode: explicit\n  max_verts: 65536\n  max_indxs: 98304\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c := got.MeshCapacity(); c.Vertices != 65536 {
		t.Fatalf("MeshCapacity = %+v", c)
	}
}

func TestLoadMissingFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := Load(p); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}
