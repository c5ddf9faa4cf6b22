// Package partitions splits the active cells of a triangulation into
// weighted subdomains and describes the faces they exchange data across.
package partitions

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/DGMesh/tria"
	"github.com/notargets/DGMesh/utils"
)

var ErrInvalidLayout = errors.New("partitions: invalid layout")

// Partition is the set of active cells owned by one subdomain
type Partition struct {
	ID utils.SubdomainID

	Cells    []tria.CellID // in active-cell order
	NumCells int
	MaxCells int  // padded size shared by all partitions
	Weight   uint // sum of the cell weights
}

// PartitionLayout is a complete decomposition of the active cells
type PartitionLayout struct {
	Partitions []Partition

	MaxCells      int // max(NumCells) across partitions
	TotalCells    int
	NumPartitions int

	// Owner[k] is the partition of the k-th active cell
	Owner []utils.SubdomainID
	// Local[k] is the position of the k-th active cell within its partition
	Local []int

	index map[tria.CellID]int // active position of every owned cell
}

// PartitionedArray stores per-cell data of every partition contiguously:
// [partition 0][partition 1]... Each partition is padded to MaxCells cells.
type PartitionedArray struct {
	GlobalData []float64

	// Partition p occupies GlobalData[Offsets[p]:Offsets[p+1]]
	Offsets []int

	// Values per cell
	Stride int
}

// PartitionOf returns the partition of the k-th active cell, or
// InvalidSubdomainID when k is out of range
func (pl *PartitionLayout) PartitionOf(k int) utils.SubdomainID {
	if k < 0 || k >= len(pl.Owner) {
		return utils.InvalidSubdomainID
	}
	return pl.Owner[k]
}

// PartitionOfCell looks a cell up by id
func (pl *PartitionLayout) PartitionOfCell(id tria.CellID) (utils.SubdomainID, bool) {
	k, ok := pl.index[id]
	if !ok {
		return utils.InvalidSubdomainID, false
	}
	return pl.Owner[k], true
}

// LocalIndex returns the position of a cell within its partition
func (pl *PartitionLayout) LocalIndex(id tria.CellID) (int, bool) {
	k, ok := pl.index[id]
	if !ok {
		return -1, false
	}
	return pl.Local[k], true
}

// ValidateLayout checks that every active cell is owned exactly once and
// that the padded sizes agree
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("%w: %d partitions, NumPartitions %d", ErrInvalidLayout, len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.Owner) != pl.TotalCells || len(pl.Local) != pl.TotalCells {
		return fmt.Errorf("%w: owner map covers %d of %d cells", ErrInvalidLayout, len(pl.Owner), pl.TotalCells)
	}
	actualMax, total := 0, 0
	for i, p := range pl.Partitions {
		if p.ID != utils.SubdomainID(i) {
			return fmt.Errorf("%w: partition %d has id %d", ErrInvalidLayout, i, p.ID)
		}
		if p.NumCells != len(p.Cells) {
			return fmt.Errorf("%w: partition %d: NumCells %d, %d cells", ErrInvalidLayout, i, p.NumCells, len(p.Cells))
		}
		if p.MaxCells != pl.MaxCells {
			return fmt.Errorf("%w: partition %d: MaxCells %d != %d", ErrInvalidLayout, i, p.MaxCells, pl.MaxCells)
		}
		for local, id := range p.Cells {
			k, ok := pl.index[id]
			if !ok || pl.Owner[k] != p.ID || pl.Local[k] != local {
				return fmt.Errorf("%w: cell %v listed in partition %d is owned elsewhere", ErrInvalidLayout, id, i)
			}
		}
		actualMax = max(actualMax, p.NumCells)
		total += p.NumCells
	}
	if actualMax != pl.MaxCells {
		return fmt.Errorf("%w: computed MaxCells %d != stored %d", ErrInvalidLayout, actualMax, pl.MaxCells)
	}
	if total != pl.TotalCells {
		return fmt.Errorf("%w: partitions hold %d of %d cells", ErrInvalidLayout, total, pl.TotalCells)
	}
	return nil
}

// Apply writes the layout into the subdomain ids of the active cells.
// The mesh must not have changed since the layout was built.
func (pl *PartitionLayout) Apply(t *tria.Triangulation) error {
	if t.NActiveCells() != pl.TotalCells {
		return fmt.Errorf("%w: layout for %d cells, mesh has %d", ErrInvalidLayout, pl.TotalCells, t.NActiveCells())
	}
	k := 0
	for c := range t.ActiveCells() {
		if _, ok := pl.index[c.ID()]; !ok {
			return fmt.Errorf("%w: active cell %v not in layout", ErrInvalidLayout, c.ID())
		}
		t.EditCell(c.ID()).SetSubdomainID(pl.Owner[k])
		k++
	}
	return nil
}

// GetPartitionData returns partition p's slice of the array
func (pa *PartitionedArray) GetPartitionData(p int) []float64 {
	if p < 0 || p >= len(pa.Offsets)-1 {
		return nil
	}
	return pa.GlobalData[pa.Offsets[p]:pa.Offsets[p+1]]
}

// CellData returns the values of a cell given its partition and local index
func (pa *PartitionedArray) CellData(p, local int) []float64 {
	data := pa.GetPartitionData(p)
	start := local * pa.Stride
	if data == nil || local < 0 || start+pa.Stride > len(data) {
		return nil
	}
	return data[start : start+pa.Stride]
}

// AllocatePartitionedArray creates zeroed storage for stride values per cell
func AllocatePartitionedArray(layout *PartitionLayout, stride int) *PartitionedArray {
	offsets := make([]int, layout.NumPartitions+1)
	for i := range layout.Partitions {
		offsets[i+1] = offsets[i] + layout.MaxCells*stride
	}
	return &PartitionedArray{
		GlobalData: make([]float64, offsets[layout.NumPartitions]),
		Offsets:    offsets,
		Stride:     stride,
	}
}

type PartitionStats struct {
	NumPartitions int
	MinCells      int
	MaxCells      int
	AvgCells      float64
	MinWeight     uint
	MaxWeight     uint
	Imbalance     float64 // MaxWeight / average weight
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinCells:      math.MaxInt32,
		MinWeight:     math.MaxUint32,
	}
	if pl.NumPartitions == 0 {
		return stats
	}
	stats.AvgCells = float64(pl.TotalCells) / float64(pl.NumPartitions)
	var total uint
	for _, p := range pl.Partitions {
		stats.MinCells = min(stats.MinCells, p.NumCells)
		stats.MaxCells = max(stats.MaxCells, p.NumCells)
		stats.MinWeight = min(stats.MinWeight, p.Weight)
		stats.MaxWeight = max(stats.MaxWeight, p.Weight)
		total += p.Weight
	}
	if total > 0 {
		stats.Imbalance = float64(stats.MaxWeight) * float64(pl.NumPartitions) / float64(total)
	}
	return stats
}
