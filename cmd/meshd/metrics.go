package main

import (
	"fmt"
	"net/http"

	"voxelmesh.ai/internal/persistence/indexdb"
	"voxelmesh.ai/internal/render/gpu"
	"voxelmesh.ai/internal/render/world"
	"voxelmesh.ai/internal/transport/observer"
)

type metricsSource struct {
	renderer *renderer
	terrain  *world.Terrain
	device   *gpu.MemDevice
	hub      *observer.Hub
	index    *indexdb.SQLiteIndex
}

func (m metricsSource) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, m)
	}
}

// writeMetrics emits the minimal Prometheus exposition format.
func writeMetrics(rw http.ResponseWriter, m metricsSource) {
	f := m.renderer.Stats()
	fmt.Fprintf(rw, "# HELP voxelmesh_frames_total Frames rendered.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_frames_total counter\n")
	fmt.Fprintf(rw, "voxelmesh_frames_total %d\n", f.Frames)

	fmt.Fprintf(rw, "# HELP voxelmesh_frame_step_ms Last frame step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_frame_step_ms gauge\n")
	fmt.Fprintf(rw, "voxelmesh_frame_step_ms %.3f\n", float64(f.StepMicros)/1000)

	fmt.Fprintf(rw, "# HELP voxelmesh_frame_draw_calls Draw calls issued in the last frame.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_frame_draw_calls gauge\n")
	fmt.Fprintf(rw, "voxelmesh_frame_draw_calls %d\n", f.DrawCalls)
	fmt.Fprintf(rw, "voxelmesh_frame_drawn_indices %d\n", f.DrawnIdx)

	fmt.Fprintf(rw, "# HELP voxelmesh_edits_total Voxel edits applied.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_edits_total counter\n")
	fmt.Fprintf(rw, "voxelmesh_edits_total %d\n", f.Edits)

	s := m.terrain.Stats()
	fmt.Fprintf(rw, "# HELP voxelmesh_terrain Terrain gauges.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_terrain gauge\n")
	fmt.Fprintf(rw, "voxelmesh_terrain{metric=%q} %d\n", "chunks", s.Chunks)
	fmt.Fprintf(rw, "voxelmesh_terrain{metric=%q} %d\n", "meshes", s.Meshes)
	fmt.Fprintf(rw, "voxelmesh_terrain{metric=%q} %d\n", "resident_quads", s.ResidentQuads)
	fmt.Fprintf(rw, "voxelmesh_terrain{metric=%q} %d\n", "last_build_us", s.LastBuildMicros)

	fmt.Fprintf(rw, "# HELP voxelmesh_mesh_ops_total Mesh operations by kind.\n")
	fmt.Fprintf(rw, "# TYPE voxelmesh_mesh_ops_total counter\n")
	fmt.Fprintf(rw, "voxelmesh_mesh_ops_total{op=%q} %d\n", "upload", s.Uploads)
	fmt.Fprintf(rw, "voxelmesh_mesh_ops_total{op=%q} %d\n", "update", s.Updates)
	fmt.Fprintf(rw, "voxelmesh_mesh_ops_total{op=%q} %d\n", "evict", s.Evictions)
	fmt.Fprintf(rw, "voxelmesh_mesh_ops_total{op=%q} %d\n", "draw", s.Draws)
	fmt.Fprintf(rw, "voxelmesh_mesh_ops_total{op=%q} %d\n", "not_ready", s.NotReady)
	fmt.Fprintf(rw, "voxelmesh_mesh_ops_total{op=%q} %d\n", "sink_error", s.SinkErrors)
	fmt.Fprintf(rw, "voxelmesh_quads_built_total %d\n", s.QuadsBuilt)

	if m.device != nil {
		d := m.device.Stats()
		fmt.Fprintf(rw, "# HELP voxelmesh_device_bytes Device buffer bytes.\n")
		fmt.Fprintf(rw, "# TYPE voxelmesh_device_bytes gauge\n")
		fmt.Fprintf(rw, "voxelmesh_device_bytes{kind=%q} %d\n", "allocated", d.AllocatedBytes)
		fmt.Fprintf(rw, "voxelmesh_device_buffers %d\n", d.Buffers)
		fmt.Fprintf(rw, "voxelmesh_device_written_bytes_total %d\n", d.WrittenBytes)
	}
	if m.hub != nil {
		h := m.hub.Stats()
		fmt.Fprintf(rw, "# HELP voxelmesh_observer_sessions Connected observers.\n")
		fmt.Fprintf(rw, "# TYPE voxelmesh_observer_sessions gauge\n")
		fmt.Fprintf(rw, "voxelmesh_observer_sessions %d\n", h.Sessions)
		fmt.Fprintf(rw, "voxelmesh_observer_messages_total{result=%q} %d\n", "sent", h.Sent)
		fmt.Fprintf(rw, "voxelmesh_observer_messages_total{result=%q} %d\n", "dropped", h.Dropped)
	}
	if m.index != nil {
		st := m.index.Stats()
		fmt.Fprintf(rw, "# HELP voxelmesh_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE voxelmesh_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "voxelmesh_index_queue_depth %d\n", st.QueueDepth)
		fmt.Fprintf(rw, "voxelmesh_index_queue_capacity %d\n", st.QueueCapacity)
		fmt.Fprintf(rw, "voxelmesh_index_dropped_total %d\n", st.DropTotal)
	}
}
