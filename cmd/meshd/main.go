package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"voxelmesh.ai/internal/persistence/indexdb"
	persistlog "voxelmesh.ai/internal/persistence/log"
	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/gpu"
	"voxelmesh.ai/internal/render/mesh"
	"voxelmesh.ai/internal/render/terrain/gen"
	"voxelmesh.ai/internal/render/tuning"
	"voxelmesh.ai/internal/render/world"
	"voxelmesh.ai/internal/transport/observer"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configPath  = flag.String("config", "./configs/render.yaml", "path to render.yaml (empty for defaults)")
		dataDir     = flag.String("data", "./data", "runtime data directory (mesh logs, index)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite mesh index")
		disableLog  = flag.Bool("disable_log", false, "disable the compressed mesh event log")
		centerFlag  = flag.String("center", "0,0,0", "chunk the view is centred on (x,y,z)")
		allowRemote = flag.Bool("allow_remote_observers", false, "serve observer endpoints to non-loopback clients")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[meshd] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *configPath)
		tune = tuning.Defaults()
	}
	center, err := parsePos(*centerFlag)
	if err != nil {
		logger.Fatalf("center: %v", err)
	}

	plan := tune.MeshCapacity()
	logger.Printf("capacity plan: %s per chunk (worst case %d quads for %d^3)", plan, mesh.WorstCaseQuads(chunk.Size), chunk.Size)

	generator, err := gen.ByName(tune.Worldgen.Generator, gen.Params{
		Seed:         tune.Worldgen.Seed,
		BaseHeight:   tune.Worldgen.BaseHeight,
		HeightRange:  tune.Worldgen.HeightRange,
		FeatureScale: tune.Worldgen.FeatureScale,
	})
	if err != nil {
		logger.Fatalf("worldgen: %v", err)
	}

	dev := gpu.NewMemDevice()
	terrain, err := world.New(dev, world.Config{VoxelSize: tune.VoxelSize, Capacity: plan})
	if err != nil {
		logger.Fatalf("terrain: %v", err)
	}

	hub := observer.NewHub()
	sinks := world.MultiSink{hub}
	if !*disableLog {
		meshLog := persistlog.NewMeshLogger(*dataDir)
		defer meshLog.Close()
		sinks = append(sinks, meshLog)
	}
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "meshes.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertPlan(plan, tune); err != nil {
			logger.Printf("index: upsert plan: %v", err)
		}
		sinks = append(sinks, idx)
	}
	terrain.SetSink(sinks)

	r := newRenderer(terrain, hub, tune, generator, center, logger)

	ctx, cancel := signalContext()
	defer cancel()

	fillStart := time.Now()
	if err := r.fill(); err != nil {
		logger.Fatalf("initial fill: %v", err)
	}
	ds := dev.Stats()
	logger.Printf("filled %d chunks in %s; device holds %s in %d buffers",
		terrain.Stats().Chunks, time.Since(fillStart).Round(time.Millisecond), humanize.IBytes(ds.AllocatedBytes), ds.Buffers)

	runErr := make(chan error, 1)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		runErr <- r.Run(ctx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsSource{renderer: r, terrain: terrain, device: dev, hub: hub, index: idx}.Handler())

	obsSrv := observer.NewServer(hub, logger)
	obsSrv.AllowRemote = *allowRemote
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	if envBool("VM_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		select {
		case <-ctx.Done():
		case err := <-runErr:
			if err != nil && err != context.Canceled {
				logger.Printf("frame loop stopped: %v", err)
			}
			cancel()
		}
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	// Sinks close on return; the frame loop must be done writing to them.
	cancel()
	<-loopDone
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func parsePos(s string) (chunk.Pos, error) {
	var p chunk.Pos
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return p, strconv.ErrSyntax
	}
	for i, part := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return p, err
		}
		p[i] = int32(v)
	}
	return p, nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
