// Package tuning loads the renderer's YAML configuration.
package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/gpu"
	"voxelmesh.ai/internal/render/mesh"
)

const (
	CapacityWorstCase = "worst_case"
	CapacityExplicit  = "explicit"
)

type Tuning struct {
	VoxelSize   float32 `yaml:"voxel_size"`
	ViewRadius  int     `yaml:"view_radius"`
	ChunkLayers int     `yaml:"chunk_layers"`
	MaxChunks   int     `yaml:"max_chunks"`
	FrameMs     int     `yaml:"frame_ms"`

	Worldgen Worldgen `yaml:"worldgen"`
	Capacity Capacity `yaml:"capacity"`
	Edits    Edits    `yaml:"edits"`
}

type Worldgen struct {
	Generator    string `yaml:"generator"`
	Seed         int64  `yaml:"seed"`
	BaseHeight   int    `yaml:"base_height"`
	HeightRange  int    `yaml:"height_range"`
	FeatureScale int    `yaml:"feature_scale"`
}

type Capacity struct {
	Mode     string `yaml:"mode"`
	MaxVerts uint32 `yaml:"max_verts"`
	MaxIndxs uint32 `yaml:"max_indxs"`
}

type Edits struct {
	EveryMs int `yaml:"every_ms"`
	PerTick int `yaml:"per_tick"`
}

//go:embed render.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("render.schema.json", schemaJSON)

func Defaults() Tuning {
	return Tuning{
		VoxelSize:   1,
		ViewRadius:  3,
		ChunkLayers: 1,
		MaxChunks:   512,
		FrameMs:     50,
		Worldgen: Worldgen{
			Generator:    "heightmap",
			Seed:         1337,
			BaseHeight:   8,
			HeightRange:  12,
			FeatureScale: 16,
		},
		Capacity: Capacity{Mode: CapacityWorstCase},
		Edits:    Edits{EveryMs: 500, PerTick: 4},
	}
}

// Load reads a tuning file over Defaults. An empty path returns the
// defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return Parse(raw)
}

// Parse decodes and validates a tuning document over Defaults.
func Parse(raw []byte) (Tuning, error) {
	t := Defaults()
	if err := validateSchema(raw); err != nil {
		return t, fmt.Errorf("render.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("render.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("render.yaml: %w", err)
	}
	return t, nil
}

// validateSchema checks the document shape. YAML is decoded generically and
// re-encoded as JSON so the schema sees JSON numbers and objects.
func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

func (t *Tuning) Normalize() {
	t.Worldgen.Generator = strings.ToLower(strings.TrimSpace(t.Worldgen.Generator))
	t.Capacity.Mode = strings.ToLower(strings.TrimSpace(t.Capacity.Mode))
	if t.Capacity.Mode == "" {
		t.Capacity.Mode = CapacityWorstCase
	}
	if t.Worldgen.FeatureScale <= 0 {
		t.Worldgen.FeatureScale = 1
	}
}

func (t Tuning) Validate() error {
	if t.VoxelSize <= 0 {
		return fmt.Errorf("voxel_size must be > 0")
	}
	if t.MaxChunks <= 0 {
		return fmt.Errorf("max_chunks must be > 0")
	}
	if t.FrameMs <= 0 {
		return fmt.Errorf("frame_ms must be > 0")
	}
	if t.Worldgen.Generator == "" {
		return fmt.Errorf("worldgen.generator is required")
	}
	if err := t.MeshCapacity().Validate(); err != nil {
		return err
	}
	if t.Capacity.Mode == CapacityExplicit {
		// An explicit plan below the worst case can overflow at runtime.
		worst := gpu.ChunkCapacity(chunk.Size)
		if t.Capacity.MaxVerts < worst.Vertices || t.Capacity.MaxIndxs < worst.Indices {
			return fmt.Errorf("%w: capacity %d/%d below worst case %d/%d for %d^3 chunks (%d quads)",
				gpu.ErrCapacityPlan, t.Capacity.MaxVerts, t.Capacity.MaxIndxs,
				worst.Vertices, worst.Indices, chunk.Size, mesh.WorstCaseQuads(chunk.Size))
		}
	}
	return nil
}

// MeshCapacity is the per-chunk buffer plan.
func (t Tuning) MeshCapacity() gpu.Capacity {
	if t.Capacity.Mode == CapacityExplicit {
		return gpu.Capacity{Vertices: t.Capacity.MaxVerts, Indices: t.Capacity.MaxIndxs}
	}
	return gpu.ChunkCapacity(chunk.Size)
}
