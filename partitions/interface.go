package partitions

import (
	"fmt"
	"maps"
	"slices"

	"github.com/notargets/DGMesh/tria"
	"github.com/notargets/DGMesh/utils"
)

// InterfaceFace is a face shared by active cells of two partitions, seen
// from the finer cell. At a hanging face Neighbor is the coarser cell and
// NeighborFace its whole face.
type InterfaceFace struct {
	Cell              tria.CellID
	Face              int
	Partition         utils.SubdomainID
	Neighbor          tria.CellID
	NeighborFace      int
	NeighborPartition utils.SubdomainID
	Periodic          bool
}

// InterfaceFaces lists every face between cells of different partitions
// once, in active-cell order of the finer side
func InterfaceFaces(t *tria.Triangulation, layout *PartitionLayout) ([]InterfaceFace, error) {
	if t.NActiveCells() != layout.TotalCells {
		return nil, fmt.Errorf("%w: layout for %d cells, mesh has %d", ErrInvalidLayout, layout.TotalCells, t.NActiveCells())
	}
	var out []InterfaceFace
	k := 0
	for c := range t.ActiveCells() {
		p := layout.Owner[k]
		for f := 0; f < c.NFaces(); f++ {
			nb, g, periodic, ok := across(t, c, f)
			if !ok || !t.Cell(nb).Active() {
				continue
			}
			j, found := layout.index[nb]
			if !found {
				return nil, fmt.Errorf("%w: neighbor %v of %v not in layout", ErrInvalidLayout, nb, c.ID())
			}
			q := layout.Owner[j]
			if q == p {
				continue
			}
			// same-level pairs are reported by the earlier cell
			if nb.Level == c.Level() && j < k {
				continue
			}
			out = append(out, InterfaceFace{
				Cell: c.ID(), Face: f, Partition: p,
				Neighbor: nb, NeighborFace: g, NeighborPartition: q,
				Periodic: periodic,
			})
		}
		k++
	}
	return out, nil
}

// across returns the cell and face on the other side of face f, through a
// periodic pair when the face is on the boundary
func across(t *tria.Triangulation, c tria.Cell, f int) (tria.CellID, int, bool, bool) {
	if nb, ok := c.Neighbor(f); ok {
		g, ok := backFace(t, c.ID(), nb)
		return nb, g, false, ok
	}
	if nb, g, ok := c.PeriodicNeighbor(f); ok {
		return nb, g, true, true
	}
	return tria.NoCell, -1, false, false
}

// backFace finds the face of nb whose neighbor is id or an ancestor of it
func backFace(t *tria.Triangulation, id, nb tria.CellID) (int, bool) {
	anc := id
	for anc.Level > nb.Level {
		anc, _ = t.Cell(anc).Parent()
	}
	n := t.Cell(nb)
	for g := 0; g < n.NFaces(); g++ {
		if other, ok := n.Neighbor(g); ok && other == anc {
			return g, true
		}
	}
	return -1, false
}

// FaceRef is a face of a cell held in a partition
type FaceRef struct {
	Local int // position of the cell in its partition
	Face  int
}

// RemotePartition describes the exchange with one other partition. Face i
// of Faces fills send slots [SendOffset+i*Nfp, SendOffset+(i+1)*Nfp) and
// its partner values arrive in the matching receive slots.
type RemotePartition struct {
	PartitionID utils.SubdomainID
	Faces       []FaceRef

	SendOffset int
	SendCount  int
	RecvOffset int
	RecvCount  int
}

// PartitionBuffer holds the face values one partition exchanges with its
// neighbors
type PartitionBuffer struct {
	PartitionID utils.SubdomainID
	Nfp         int // values per face

	SendBuffer []float64
	RecvBuffer []float64

	RemotePartitions []RemotePartition // by increasing PartitionID
}

// BuildPartitionBuffers creates the exchange buffers of every partition for
// nfp values per face
func BuildPartitionBuffers(t *tria.Triangulation, layout *PartitionLayout, nfp int) ([]*PartitionBuffer, error) {
	if nfp < 1 {
		return nil, fmt.Errorf("%w: %d values per face", ErrInvalidLayout, nfp)
	}
	faces, err := InterfaceFaces(t, layout)
	if err != nil {
		return nil, err
	}

	// groups[p][q] lists the faces p sends to q; both directions are filled
	// from the same face so the orders match
	groups := make([]map[utils.SubdomainID][]FaceRef, layout.NumPartitions)
	for i := range groups {
		groups[i] = make(map[utils.SubdomainID][]FaceRef)
	}
	for _, fc := range faces {
		a, _ := layout.LocalIndex(fc.Cell)
		b, _ := layout.LocalIndex(fc.Neighbor)
		groups[fc.Partition][fc.NeighborPartition] = append(groups[fc.Partition][fc.NeighborPartition], FaceRef{a, fc.Face})
		groups[fc.NeighborPartition][fc.Partition] = append(groups[fc.NeighborPartition][fc.Partition], FaceRef{b, fc.NeighborFace})
	}

	buffers := make([]*PartitionBuffer, layout.NumPartitions)
	for p := range buffers {
		buffers[p] = buildPartitionBuffer(utils.SubdomainID(p), groups[p], nfp)
	}
	if err := validateCommunicationSymmetry(buffers); err != nil {
		return nil, fmt.Errorf("asymmetric communication pattern: %w", err)
	}
	return buffers, nil
}

func buildPartitionBuffer(p utils.SubdomainID, groups map[utils.SubdomainID][]FaceRef, nfp int) *PartitionBuffer {
	pb := &PartitionBuffer{PartitionID: p, Nfp: nfp}
	offset := 0
	for _, q := range slices.Sorted(maps.Keys(groups)) {
		count := len(groups[q]) * nfp
		pb.RemotePartitions = append(pb.RemotePartitions, RemotePartition{
			PartitionID: q,
			Faces:       groups[q],
			SendOffset:  offset,
			SendCount:   count,
			RecvOffset:  offset,
			RecvCount:   count,
		})
		offset += count
	}
	pb.SendBuffer = make([]float64, offset)
	pb.RecvBuffer = make([]float64, offset)
	return pb
}

func validateCommunicationSymmetry(buffers []*PartitionBuffer) error {
	sendMap := make(map[[2]utils.SubdomainID]int)
	for _, buf := range buffers {
		for _, rp := range buf.RemotePartitions {
			sendMap[[2]utils.SubdomainID{buf.PartitionID, rp.PartitionID}] = rp.SendCount
		}
	}
	for _, buf := range buffers {
		for _, rp := range buf.RemotePartitions {
			expected, exists := sendMap[[2]utils.SubdomainID{rp.PartitionID, buf.PartitionID}]
			if !exists {
				return fmt.Errorf("partition %d expects to receive from %d, but %d doesn't send",
					buf.PartitionID, rp.PartitionID, rp.PartitionID)
			}
			if expected != rp.RecvCount {
				return fmt.Errorf("count mismatch: partition %d sends %d to %d, but %d expects %d",
					rp.PartitionID, expected, buf.PartitionID, buf.PartitionID, rp.RecvCount)
			}
		}
	}
	return nil
}

// Remote returns the exchange with partition q
func (pb *PartitionBuffer) Remote(q utils.SubdomainID) (*RemotePartition, bool) {
	i, ok := slices.BinarySearchFunc(pb.RemotePartitions, q, func(rp RemotePartition, q utils.SubdomainID) int {
		return int(rp.PartitionID) - int(q)
	})
	if !ok {
		return nil, false
	}
	return &pb.RemotePartitions[i], true
}

// Pack fills the send buffer. faceValues writes the Nfp values of a face
// into out.
func (pb *PartitionBuffer) Pack(faceValues func(ref FaceRef, out []float64)) {
	for _, rp := range pb.RemotePartitions {
		for i, ref := range rp.Faces {
			start := rp.SendOffset + i*pb.Nfp
			faceValues(ref, pb.SendBuffer[start:start+pb.Nfp])
		}
	}
}

// Received returns the partner values of face i of the exchange with q
func (pb *PartitionBuffer) Received(q utils.SubdomainID, i int) []float64 {
	rp, ok := pb.Remote(q)
	if !ok || i < 0 || i >= len(rp.Faces) {
		return nil
	}
	start := rp.RecvOffset + i*pb.Nfp
	return pb.RecvBuffer[start : start+pb.Nfp]
}

// Exchange copies every send segment into the receive buffer of its
// destination, for partitions sharing memory
func Exchange(buffers []*PartitionBuffer) error {
	for _, src := range buffers {
		for _, rp := range src.RemotePartitions {
			if int(rp.PartitionID) >= len(buffers) {
				return fmt.Errorf("%w: partition %d sends to unknown partition %d", ErrInvalidLayout, src.PartitionID, rp.PartitionID)
			}
			dst, ok := buffers[rp.PartitionID].Remote(src.PartitionID)
			if !ok || dst.RecvCount != rp.SendCount {
				return fmt.Errorf("%w: no matching receive for %d -> %d", ErrInvalidLayout, src.PartitionID, rp.PartitionID)
			}
			copy(buffers[rp.PartitionID].RecvBuffer[dst.RecvOffset:dst.RecvOffset+dst.RecvCount],
				src.SendBuffer[rp.SendOffset:rp.SendOffset+rp.SendCount])
		}
	}
	return nil
}
