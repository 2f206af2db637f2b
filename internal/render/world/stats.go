package world

import "go.uber.org/atomic"

// Stats is a snapshot of Terrain counters.
type Stats struct {
	Chunks          int
	Meshes          int
	ResidentQuads   int
	Uploads         uint64
	Updates         uint64
	Evictions       uint64
	QuadsBuilt      uint64
	Draws           uint64
	NotReady        uint64
	SinkErrors      uint64
	LastBuildMicros int64
}

// counters are written by the goroutine that owns the Terrain and read by
// metrics handlers on other goroutines.
type counters struct {
	chunks        atomic.Int64
	meshes        atomic.Int64
	residentQuads atomic.Int64
	uploads       atomic.Uint64
	updates       atomic.Uint64
	evictions     atomic.Uint64
	quadsBuilt    atomic.Uint64
	draws         atomic.Uint64
	notReady      atomic.Uint64
	sinkErrors    atomic.Uint64
	lastBuild     atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Chunks:          int(c.chunks.Load()),
		Meshes:          int(c.meshes.Load()),
		ResidentQuads:   int(c.residentQuads.Load()),
		Uploads:         c.uploads.Load(),
		Updates:         c.updates.Load(),
		Evictions:       c.evictions.Load(),
		QuadsBuilt:      c.quadsBuilt.Load(),
		Draws:           c.draws.Load(),
		NotReady:        c.notReady.Load(),
		SinkErrors:      c.sinkErrors.Load(),
		LastBuildMicros: c.lastBuild.Load(),
	}
}
