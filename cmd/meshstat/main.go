package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	persistlog "voxelmesh.ai/internal/persistence/log"
	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/gpu"
	"voxelmesh.ai/internal/render/mesh"
	"voxelmesh.ai/internal/render/terrain/gen"
	"voxelmesh.ai/internal/render/tuning"
	"voxelmesh.ai/internal/render/world"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/render.yaml", "path to render.yaml (empty for defaults)")
		check      = flag.Bool("check", false, "mesh adversarial chunks and fail if any exceeds the capacity plan")
		trials     = flag.Int("trials", 64, "randomized adversaries for -check")
		seed       = flag.Int64("seed", 1, "seed for randomized adversaries")
		top        = flag.Int("top", 10, "largest chunks to list")
		meshLog    = flag.String("log", "", "summarize a meshes-*.jsonl.zst file instead of generating")
	)
	flag.Parse()

	tune, err := tuning.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	plan := tune.MeshCapacity()

	color.Blue("Capacity plan (%s)", tune.Capacity.Mode)
	worst := gpu.ChunkCapacity(chunk.Size)
	fmt.Printf("  per chunk   %s\n", plan)
	fmt.Printf("  worst case  %d quads, %s\n", mesh.WorstCaseQuads(chunk.Size), worst)
	fmt.Printf("  headroom    %d verts / %d indices\n", int64(plan.Vertices)-int64(worst.Vertices), int64(plan.Indices)-int64(worst.Indices))

	switch {
	case *meshLog != "":
		if err := summarizeLog(*meshLog); err != nil {
			fmt.Fprintln(os.Stderr, "read mesh log:", err)
			os.Exit(1)
		}
	case *check:
		reports, err := runChecks(plan, *trials, *seed)
		if err != nil {
			fmt.Fprintln(os.Stderr, "check:", err)
			os.Exit(1)
		}
		failed := 0
		for _, r := range reports {
			if !r.Fits {
				failed++
				color.Red("  FAIL %-16s quads=%d verts=%d indices=%d", r.Name, r.Quads, r.Vertices, r.Indices)
			}
		}
		sortReports(reports)
		printTop(reports, *top)
		if failed > 0 {
			color.Red("%d of %d adversaries exceed the plan", failed, len(reports))
			os.Exit(1)
		}
		color.Green("all %d adversaries fit", len(reports))
	default:
		g, err := gen.ByName(tune.Worldgen.Generator, gen.Params{
			Seed:         tune.Worldgen.Seed,
			BaseHeight:   tune.Worldgen.BaseHeight,
			HeightRange:  tune.Worldgen.HeightRange,
			FeatureScale: tune.Worldgen.FeatureScale,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "worldgen:", err)
			os.Exit(1)
		}
		coords := world.WantedChunks(chunk.Pos{}, tune.ViewRadius, tune.ChunkLayers, tune.MaxChunks)
		reports, err := surveyChunks(plan, g, coords)
		if err != nil {
			fmt.Fprintln(os.Stderr, "survey:", err)
			os.Exit(1)
		}
		var quads, vbytes, ibytes uint64
		for _, r := range reports {
			quads += uint64(r.Quads)
			vbytes += uint64(r.Vertices) * mesh.VertexStride
			ibytes += uint64(r.Indices) * mesh.IndexStride
		}
		resident := uint64(len(reports)) * (plan.VertexBytes() + plan.IndexBytes())
		color.Blue("World %q over %d chunks", tune.Worldgen.Generator, len(reports))
		fmt.Printf("  quads       %s\n", humanize.Comma(int64(quads)))
		fmt.Printf("  mesh data   %s vertices + %s indices\n", humanize.IBytes(vbytes), humanize.IBytes(ibytes))
		fmt.Printf("  resident    %s reserved on device\n", humanize.IBytes(resident))
		sortReports(reports)
		printTop(reports, *top)
	}
}

func sortReports(rs []chunkReport) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Quads != rs[j].Quads {
			return rs[i].Quads > rs[j].Quads
		}
		return rs[i].Pos.Less(rs[j].Pos)
	})
}

func printTop(rs []chunkReport, n int) {
	if n <= 0 || len(rs) == 0 {
		return
	}
	if n > len(rs) {
		n = len(rs)
	}
	color.Cyan("Largest %d", n)
	for _, r := range rs[:n] {
		mark := color.GreenString("ok")
		if !r.Fits {
			mark = color.RedString("over")
		}
		fmt.Printf("  %-16s quads=%-6d verts=%-6d indices=%-6d %s\n", r.Name, r.Quads, r.Vertices, r.Indices, mark)
	}
}

type logSummary struct {
	Events   int
	ByKind   map[world.MeshEventKind]int
	MaxQuads int
	MaxPos   chunk.Pos
	Chunks   int
}

func readLogSummary(path string) (logSummary, error) {
	s := logSummary{ByKind: map[world.MeshEventKind]int{}}
	seen := map[chunk.Pos]struct{}{}
	err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
		var ev world.MeshEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return err
		}
		s.Events++
		s.ByKind[ev.Kind]++
		seen[ev.Pos] = struct{}{}
		if ev.Quads > s.MaxQuads {
			s.MaxQuads = ev.Quads
			s.MaxPos = ev.Pos
		}
		return nil
	})
	s.Chunks = len(seen)
	return s, err
}

func summarizeLog(path string) error {
	s, err := readLogSummary(path)
	if err != nil {
		return err
	}
	color.Blue("Mesh log %s", path)
	fmt.Printf("  events      %s over %d chunks\n", humanize.Comma(int64(s.Events)), s.Chunks)
	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("  %-11s %d\n", k, s.ByKind[world.MeshEventKind(k)])
	}
	fmt.Printf("  max quads   %d at %v\n", s.MaxQuads, s.MaxPos)
	return nil
}
