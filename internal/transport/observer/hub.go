package observer

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"sync"

	"go.uber.org/atomic"

	"voxelmesh.ai/internal/observerproto"
	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/mesh"
	"voxelmesh.ai/internal/render/world"
)

// sendsPerFrame caps how many backlog meshes one session receives per Pump.
const sendsPerFrame = 64

type session struct {
	id   string
	out  chan []byte
	sub  observerproto.SubscribeMsg
	done chan struct{}

	wanted []chunk.Pos
	inView map[chunk.Pos]struct{}
	sent   map[chunk.Pos]string
}

type subscribeReq struct {
	id  string
	sub observerproto.SubscribeMsg
}

// Hub fans mesh events out to observer sessions. Sessions join and
// resubscribe through channels; the goroutine that owns the Terrain applies
// them in Pump and is the only one that touches session state. Hub is also
// the world.MeshSink for that goroutine.
type Hub struct {
	join      chan *session
	leave     chan string
	subscribe chan subscribeReq

	sessions map[string]*session

	bootMu sync.RWMutex
	boot   observerproto.BootstrapResponse

	sent    atomic.Uint64
	dropped atomic.Uint64
	active  atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		join:      make(chan *session, 64),
		leave:     make(chan string, 64),
		subscribe: make(chan subscribeReq, 256),
		sessions:  map[string]*session{},
		boot:      observerproto.BootstrapResponse{ProtocolVersion: observerproto.Version},
	}
}

type HubStats struct {
	Sessions int
	Sent     uint64
	Dropped  uint64
}

func (h *Hub) Stats() HubStats {
	return HubStats{Sessions: int(h.active.Load()), Sent: h.sent.Load(), Dropped: h.dropped.Load()}
}

func (h *Hub) Bootstrap() observerproto.BootstrapResponse {
	h.bootMu.RLock()
	defer h.bootMu.RUnlock()
	return h.boot
}

// Pump applies pending joins, leaves and subscriptions, sends every session
// the resident meshes it has not seen yet, and refreshes the bootstrap
// snapshot. Call it from the goroutine that owns t.
func (h *Hub) Pump(t *world.Terrain, frame uint64) {
	for {
		select {
		case s := <-h.join:
			h.sessions[s.id] = s
			h.apply(s, s.sub)
			h.send(s, observerproto.WelcomeMsg{
				Type:            observerproto.TypeWelcome,
				ProtocolVersion: observerproto.Version,
				SessionID:       s.id,
				Wanted:          len(s.wanted),
			})
			continue
		case id := <-h.leave:
			delete(h.sessions, id)
			continue
		case r := <-h.subscribe:
			if s, ok := h.sessions[r.id]; ok {
				h.apply(s, r.sub)
			}
			continue
		default:
		}
		break
	}
	for id, s := range h.sessions {
		if s.closed() {
			delete(h.sessions, id)
		}
	}
	h.active.Store(int64(len(h.sessions)))

	for _, s := range h.sessions {
		budget := sendsPerFrame
		for _, pos := range s.wanted {
			if budget == 0 {
				break
			}
			if _, ok := s.sent[pos]; ok {
				continue
			}
			if _, ok := t.Cache().Get(pos); !ok {
				continue
			}
			cpu, err := t.MakeMesh(pos)
			if err != nil {
				continue
			}
			msg := meshMsg(0, pos, "snapshot", cpu, s.sub.IncludeData)
			if h.send(s, msg) {
				s.sent[pos] = msg.Digest
			}
			budget--
		}
	}

	loaded := t.Store().LoadedChunkKeys()
	boot := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		ChunkSize:       chunk.Size,
		PaddedEdge:      chunk.Edge,
		VoxelSize:       t.Config().VoxelSize,
		FaceOrder:       []string{"-X", "-Y", "-Z", "+X", "+Y", "+Z"},
		Capacity: observerproto.CapacityInfo{
			MaxVerts:    t.Config().Capacity.Vertices,
			MaxIndxs:    t.Config().Capacity.Indices,
			VertexBytes: t.Config().Capacity.VertexBytes(),
			IndexBytes:  t.Config().Capacity.IndexBytes(),
		},
		LoadedChunks: make([][3]int32, 0, len(loaded)),
		Meshes:       t.Cache().Len(),
		Frame:        frame,
	}
	for _, p := range loaded {
		boot.LoadedChunks = append(boot.LoadedChunks, [3]int32(p))
	}
	h.bootMu.Lock()
	h.boot = boot
	h.bootMu.Unlock()
}

// WriteMesh forwards a mesh event to every session whose view contains the
// chunk.
func (h *Hub) WriteMesh(ev world.MeshEvent) error {
	for _, s := range h.sessions {
		if _, ok := s.inView[ev.Pos]; !ok {
			continue
		}
		if ev.Kind == world.MeshEvicted {
			delete(s.sent, ev.Pos)
			h.send(s, observerproto.EvictMsg{
				Type:            observerproto.TypeEvict,
				ProtocolVersion: observerproto.Version,
				Seq:             ev.Seq,
				Pos:             [3]int32(ev.Pos),
			})
			continue
		}
		if ev.Mesh == nil {
			continue
		}
		msg := meshMsg(ev.Seq, ev.Pos, string(ev.Kind), ev.Mesh, s.sub.IncludeData)
		if h.send(s, msg) {
			s.sent[ev.Pos] = msg.Digest
		} else {
			// Resent from the backlog by a later Pump.
			delete(s.sent, ev.Pos)
		}
	}
	return nil
}

func (h *Hub) apply(s *session, sub observerproto.SubscribeMsg) {
	s.sub = sub
	s.wanted = world.WantedChunks(chunk.Pos(sub.Center), sub.Radius, sub.Layers, sub.MaxChunks)
	inView := make(map[chunk.Pos]struct{}, len(s.wanted))
	for _, p := range s.wanted {
		inView[p] = struct{}{}
	}
	for p := range s.sent {
		if _, ok := inView[p]; !ok {
			delete(s.sent, p)
		}
	}
	s.inView = inView
}

func (s *session) closed() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (h *Hub) send(s *session, v any) bool {
	if s.closed() {
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	select {
	case s.out <- b:
		h.sent.Inc()
		return true
	default:
		h.dropped.Inc()
		return false
	}
}

func meshMsg(seq uint64, pos chunk.Pos, kind string, m *mesh.CPUMesh, data bool) observerproto.MeshMsg {
	d := m.Digest()
	msg := observerproto.MeshMsg{
		Type:            observerproto.TypeMesh,
		ProtocolVersion: observerproto.Version,
		Seq:             seq,
		Pos:             [3]int32(pos),
		Kind:            kind,
		Quads:           m.NumQuads(),
		NumVertices:     m.NumVertices(),
		NumIndices:      m.NumIndices(),
		Digest:          hexDigest(d),
	}
	if data {
		msg.VertexEncoding = observerproto.EncodingVertexF32LE
		msg.Vertices = base64.StdEncoding.EncodeToString(mesh.AppendVertexBytes(nil, m.Vertices))
		msg.IndexEncoding = observerproto.EncodingIndexU16LE
		msg.Indices = base64.StdEncoding.EncodeToString(mesh.AppendIndexBytes(nil, m.Indices))
	}
	return msg
}

func hexDigest(d [32]byte) string { return hex.EncodeToString(d[:]) }
