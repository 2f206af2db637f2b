package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"voxelmesh.ai/internal/observerproto"
	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/mesh"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/observer/ws", "observer ws url")
		cx      = flag.Int("x", 0, "view center chunk x")
		cy      = flag.Int("y", 0, "view center chunk y")
		cz      = flag.Int("z", 0, "view center chunk z")
		radius  = flag.Int("radius", 2, "view radius in chunks")
		layers  = flag.Int("layers", 1, "vertical layers in chunks")
		data    = flag.Bool("data", false, "request and verify vertex/index streams")
		summary = flag.Int("summary_every", 64, "print a view summary every N mesh messages (0 to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[meshview] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Center:          [3]int32{int32(*cx), int32(*cy), int32(*cz)},
		Radius:          *radius,
		Layers:          *layers,
		IncludeData:     *data,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_ = conn.Close()
	}()

	v := newView()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			v.print(logger)
			return
		}
		base, err := observerproto.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case observerproto.TypeWelcome:
			var w observerproto.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s wanted=%d", w.SessionID, w.Wanted)

		case observerproto.TypeMesh:
			var m observerproto.MeshMsg
			if err := json.Unmarshal(msg, &m); err != nil {
				continue
			}
			if err := v.applyMesh(m); err != nil {
				logger.Printf("MESH %v seq=%d: %v", m.Pos, m.Seq, err)
				continue
			}
			logger.Printf("MESH %v %s seq=%d quads=%d", m.Pos, m.Kind, m.Seq, m.Quads)
			if *summary > 0 && v.messages%*summary == 0 {
				v.print(logger)
			}

		case observerproto.TypeEvict:
			var e observerproto.EvictMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			v.evict(e)
			logger.Printf("EVICT %v seq=%d", e.Pos, e.Seq)
		}
	}
}

type chunkView struct {
	Quads    int
	Vertices int
	Indices  int
	Digest   string
}

// view mirrors the observer's picture of the resident meshes.
type view struct {
	chunks   map[chunk.Pos]chunkView
	messages int
}

func newView() *view { return &view{chunks: map[chunk.Pos]chunkView{}} }

// applyMesh records a MESH message. Streams, when present, are decoded and
// checked against the advertised digest.
func (v *view) applyMesh(m observerproto.MeshMsg) error {
	if m.HasData() {
		verts, idx, err := m.DecodeData()
		if err != nil {
			return err
		}
		d := (&mesh.CPUMesh{Vertices: verts, Indices: idx}).Digest()
		if got := hexString(d); got != m.Digest {
			return errDigest{want: m.Digest, got: got}
		}
	}
	v.messages++
	v.chunks[chunk.Pos(m.Pos)] = chunkView{Quads: m.Quads, Vertices: m.NumVertices, Indices: m.NumIndices, Digest: m.Digest}
	return nil
}

func (v *view) evict(e observerproto.EvictMsg) {
	delete(v.chunks, chunk.Pos(e.Pos))
}

type viewTotals struct {
	Chunks      int
	Quads       int
	VertexBytes uint64
	IndexBytes  uint64
	Largest     chunk.Pos
}

func (v *view) totals() viewTotals {
	var t viewTotals
	keys := make([]chunk.Pos, 0, len(v.chunks))
	for k := range v.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	best := -1
	for _, k := range keys {
		c := v.chunks[k]
		t.Chunks++
		t.Quads += c.Quads
		t.VertexBytes += uint64(c.Vertices) * mesh.VertexStride
		t.IndexBytes += uint64(c.Indices) * mesh.IndexStride
		if c.Quads > best {
			best = c.Quads
			t.Largest = k
		}
	}
	return t
}

func (v *view) print(logger *log.Logger) {
	t := v.totals()
	logger.Printf("view: %d chunks, %s quads, %s vertices + %s indices, largest %v",
		t.Chunks, humanize.Comma(int64(t.Quads)), humanize.IBytes(t.VertexBytes), humanize.IBytes(t.IndexBytes), t.Largest)
}
