package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/atomic"
	_ "modernc.org/sqlite"

	"voxelmesh.ai/internal/render/chunk"
	"voxelmesh.ai/internal/render/gpu"
	"voxelmesh.ai/internal/render/mesh"
	"voxelmesh.ai/internal/render/tuning"
	"voxelmesh.ai/internal/render/world"
)

// SQLiteIndex is a queryable read model of mesh builds. Writes are queued
// and applied by one goroutine in batched transactions; the JSONL mesh log
// stays the source of truth, so a full queue drops events.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan world.MeshEvent
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
	applied atomic.Uint64
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropTotal     uint64
	AppliedTotal  uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan world.MeshEvent, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS mesh_builds (
			seq INTEGER PRIMARY KEY,
			at TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			kind TEXT NOT NULL,
			quads INTEGER NOT NULL,
			vertices INTEGER NOT NULL,
			indices INTEGER NOT NULL,
			cap_vertices INTEGER NOT NULL,
			cap_indices INTEGER NOT NULL,
			digest TEXT NOT NULL,
			voxel_digest TEXT NOT NULL,
			build_us INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mesh_builds_pos ON mesh_builds(cx, cy, cz, seq);`,
		`CREATE TABLE IF NOT EXISTS chunk_meshes (
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			last_seq INTEGER NOT NULL,
			quads INTEGER NOT NULL,
			vertices INTEGER NOT NULL,
			indices INTEGER NOT NULL,
			digest TEXT NOT NULL,
			builds INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (cx, cy, cz)
		);`,
		`CREATE TABLE IF NOT EXISTS capacity_plan (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			chunk_size INTEGER NOT NULL,
			worst_case_quads INTEGER NOT NULL,
			vertices INTEGER NOT NULL,
			indices INTEGER NOT NULL,
			vertex_bytes INTEGER NOT NULL,
			index_bytes INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue, commits and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteMesh(ev world.MeshEvent) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Inc()
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.dropped.Load(),
		AppliedTotal:  s.applied.Load(),
	}
}

// UpsertPlan records the capacity plan and the tuning it was derived from.
func (s *SQLiteIndex) UpsertPlan(c gpu.Capacity, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	meta := [][2]string{
		{"schema_version", "1"},
		{"tuning_json", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
	}
	for _, kv := range meta {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, kv[0], kv[1]); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO capacity_plan(id,chunk_size,worst_case_quads,vertices,indices,vertex_bytes,index_bytes,recorded_at) VALUES(1,?,?,?,?,?,?,?)`,
		chunk.Size, mesh.WorstCaseQuads(chunk.Size), c.Vertices, c.Indices, int64(c.VertexBytes()), int64(c.IndexBytes()), now,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertBuild, _ := s.db.Prepare(`INSERT OR REPLACE INTO mesh_builds(seq,at,cx,cy,cz,kind,quads,vertices,indices,cap_vertices,cap_indices,digest,voxel_digest,build_us) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	upsertChunk, _ := s.db.Prepare(`INSERT INTO chunk_meshes(cx,cy,cz,last_seq,quads,vertices,indices,digest,builds,updated_at) VALUES(?,?,?,?,?,?,?,?,1,?)
		ON CONFLICT(cx,cy,cz) DO UPDATE SET last_seq=excluded.last_seq, quads=excluded.quads, vertices=excluded.vertices,
		indices=excluded.indices, digest=excluded.digest, builds=chunk_meshes.builds+1, updated_at=excluded.updated_at`)
	deleteChunk, _ := s.db.Prepare(`DELETE FROM chunk_meshes WHERE cx=? AND cy=? AND cz=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertBuild, upsertChunk, deleteChunk} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 512
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err == nil {
			s.applied.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	apply := func(ev world.MeshEvent) error {
		at := ev.Time.UTC().Format(time.RFC3339Nano)
		cx, cy, cz := int64(ev.Pos[0]), int64(ev.Pos[1]), int64(ev.Pos[2])
		if ev.Kind == world.MeshEvicted {
			if deleteChunk == nil {
				return nil
			}
			_, err := tx.Stmt(deleteChunk).Exec(cx, cy, cz)
			return err
		}
		if insertBuild != nil {
			if _, err := tx.Stmt(insertBuild).Exec(
				int64(ev.Seq), at, cx, cy, cz, string(ev.Kind),
				ev.Quads, ev.Vertices, ev.Indices,
				int64(ev.CapVertices), int64(ev.CapIndices),
				ev.Digest, ev.VoxelDigest, ev.BuildMicros,
			); err != nil {
				return err
			}
		}
		if upsertChunk != nil {
			if _, err := tx.Stmt(upsertChunk).Exec(
				cx, cy, cz, int64(ev.Seq), ev.Quads, ev.Vertices, ev.Indices, ev.Digest, at,
			); err != nil {
				return err
			}
		}
		return nil
	}

	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			begin()
			if tx == nil {
				continue
			}
			if err := apply(ev); err != nil {
				rollback()
				continue
			}
			opCount++
			if opCount >= commitEvery {
				commit()
			}
		case <-ticker.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		}
	}
}
