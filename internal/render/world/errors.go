package world

import (
	"errors"
	"fmt"
	"strings"

	"voxelmesh.ai/internal/render/chunk"
)

var (
	ErrChunkNotLoaded = errors.New("world: chunk not loaded")
	ErrMeshNotReady   = errors.New("world: mesh not ready")
)

// MeshNotReadyError lists the requested chunks Draw skipped because they had
// no resident mesh. The renderer can retry them next frame.
type MeshNotReadyError struct {
	Missing []chunk.Pos
}

func (e *MeshNotReadyError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for i, p := range e.Missing {
		if i == 8 {
			parts = append(parts, fmt.Sprintf("... (%d more)", len(e.Missing)-i))
			break
		}
		parts = append(parts, fmt.Sprintf("%d,%d,%d", p[0], p[1], p[2]))
	}
	return fmt.Sprintf("world: mesh not ready for %d chunks: %s", len(e.Missing), strings.Join(parts, " "))
}

func (e *MeshNotReadyError) Unwrap() error { return ErrMeshNotReady }
