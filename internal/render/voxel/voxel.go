// Package voxel defines the per-cell classification consumed by the mesher.
package voxel

// Voxel classifies a single grid cell.
type Voxel interface {
	IsEmpty() bool
	IsOpaque() bool
}

// MergeVoxel adds the key used to decide whether two adjacent visible faces
// may be merged into one quad. Two faces merge only if their keys are equal.
type MergeVoxel[K comparable] interface {
	Voxel
	MergeValue() K
}

// Block is a binary occupancy voxel.
type Block struct {
	Solid bool
}

var (
	Air   = Block{Solid: false}
	Stone = Block{Solid: true}
)

func (b Block) IsEmpty() bool { return !b.Solid }

func (b Block) IsOpaque() bool { return b.Solid }

func (b Block) MergeValue() bool { return b.Solid }
