package partitions

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"
	"github.com/notargets/DGMesh/tria"
	"github.com/notargets/DGMesh/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// PartitionBuilder assigns the active cells of a triangulation to
// NumPartitions subdomains, balancing the cell weights
type PartitionBuilder struct {
	Tria          *tria.Triangulation
	NumPartitions int
	Strategy      PartitionStrategy
}

// PartitionStrategy defines how cells are grouped
type PartitionStrategy int

const (
	// Simple strategies
	BlockPartition PartitionStrategy = iota // consecutive active cells
	RoundRobin                              // distribute cyclically, ignores weights

	// Locality-preserving strategies
	GraphPartition    // breadth-first order of the face-neighbor graph
	SpaceFillingCurve // Morton order of the cell centers
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round_robin"
	case GraphPartition:
		return "graph"
	case SpaceFillingCurve:
		return "space_filling_curve"
	}
	return "PartitionStrategy(" + strconv.Itoa(int(s)) + ")"
}

// BuildPartitions creates a layout of the current active cells. Observers
// of PrePartition are notified first and the CellWeight observers supply
// the loads.
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	t := pb.Tria
	if t == nil || t.Empty() {
		return nil, fmt.Errorf("%w: nothing to partition", ErrInvalidLayout)
	}
	n := pb.NumPartitions
	if n < 1 || n > t.NActiveCells() {
		return nil, fmt.Errorf("%w: %d partitions for %d active cells", ErrInvalidLayout, n, t.NActiveCells())
	}

	t.NotifyPrePartition()
	weights := t.CellWeights()
	cells := make([]tria.CellID, 0, len(weights))
	for c := range t.ActiveCells() {
		cells = append(cells, c.ID())
	}

	owner, err := pb.partitionCells(cells, weights)
	if err != nil {
		return nil, err
	}
	layout := createLayout(cells, weights, owner, n)
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	stats := layout.PartitionStatistics()
	utils.Diagf("%s partition of %d cells into %d parts, imbalance %.3f", pb.Strategy, len(cells), n, stats.Imbalance)
	return layout, nil
}

// PartitionTriangulation builds a layout and writes it into the subdomain
// ids of the active cells
func PartitionTriangulation(t *tria.Triangulation, n int, strategy PartitionStrategy) (*PartitionLayout, error) {
	pb := &PartitionBuilder{Tria: t, NumPartitions: n, Strategy: strategy}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return nil, err
	}
	if err := layout.Apply(t); err != nil {
		return nil, err
	}
	return layout, nil
}

// partitionCells returns the owner of each cell in active order
func (pb *PartitionBuilder) partitionCells(cells []tria.CellID, weights []uint) ([]utils.SubdomainID, error) {
	n := pb.NumPartitions
	owner := make([]utils.SubdomainID, len(cells))
	switch pb.Strategy {
	case BlockPartition:
		order := make([]int, len(cells))
		for i := range order {
			order[i] = i
		}
		splitWeighted(order, weights, n, owner)

	case RoundRobin:
		for i := range cells {
			owner[i] = utils.SubdomainID(i % n)
		}

	case GraphPartition:
		order, err := graphOrder(pb.Tria, cells)
		if err != nil {
			return nil, err
		}
		splitWeighted(order, weights, n, owner)

	case SpaceFillingCurve:
		splitWeighted(mortonOrder(pb.Tria, cells), weights, n, owner)

	default:
		return nil, fmt.Errorf("%w: unknown strategy %v", ErrInvalidLayout, pb.Strategy)
	}
	return owner, nil
}

// splitWeighted cuts order into n consecutive runs of roughly equal weight.
// A cell goes to the part its weight midpoint falls in.
func splitWeighted(order []int, weights []uint, n int, owner []utils.SubdomainID) {
	var total float64
	for _, k := range order {
		total += float64(weights[k])
	}
	var acc float64
	for pos, k := range order {
		w := float64(weights[k])
		p := int(math.Floor((acc + w/2) * float64(n) / total))
		// every part gets at least one cell
		p = max(p, n-(len(order)-pos))
		p = min(p, pos, n-1)
		owner[k] = utils.SubdomainID(p)
		acc += w
	}
	// runs are monotone; close gaps left by the clamps
	prev := -1
	for _, k := range order {
		p := int(owner[k])
		if p > prev+1 {
			p = prev + 1
		}
		owner[k] = utils.SubdomainID(p)
		prev = p
	}
}

func vertexName(k int) string { return fmt.Sprintf("c%08d", k) }

// cellGraph connects active cells sharing a face
func cellGraph(t *tria.Triangulation, cells []tria.CellID) (*core.Graph, error) {
	index := make(map[tria.CellID]int, len(cells))
	for k, id := range cells {
		index[id] = k
	}
	g := core.NewGraph()
	for k := range cells {
		if err := g.AddVertex(vertexName(k)); err != nil {
			return nil, fmt.Errorf("cell graph: %w", err)
		}
	}
	seen := make(map[[2]int]bool)
	for k, id := range cells {
		c := t.Cell(id)
		for f := 0; f < c.NFaces(); f++ {
			nb, ok := c.Neighbor(f)
			if !ok {
				continue
			}
			j, active := index[nb]
			if !active {
				continue // the finer cells on the other side add the edge
			}
			a, b := min(k, j), max(k, j)
			if a == b || seen[[2]int{a, b}] {
				continue
			}
			seen[[2]int{a, b}] = true
			if _, err := g.AddEdge(vertexName(a), vertexName(b), 0); err != nil {
				return nil, fmt.Errorf("cell graph: %w", err)
			}
		}
	}
	return g, nil
}

// graphOrder returns the cells in breadth-first order, starting from the
// last cell reached by a first sweep from cell 0
func graphOrder(t *tria.Triangulation, cells []tria.CellID) ([]int, error) {
	g, err := cellGraph(t, cells)
	if err != nil {
		return nil, err
	}
	first, err := bfs.BFS(g, vertexName(0))
	if err != nil {
		return nil, fmt.Errorf("cell graph: %w", err)
	}
	res, err := bfs.BFS(g, first.Order[len(first.Order)-1])
	if err != nil {
		return nil, fmt.Errorf("cell graph: %w", err)
	}
	order := make([]int, 0, len(cells))
	visited := make([]bool, len(cells))
	for _, name := range res.Order {
		k, err := strconv.Atoi(name[1:])
		if err != nil {
			return nil, fmt.Errorf("cell graph: vertex %q: %w", name, err)
		}
		order = append(order, k)
		visited[k] = true
	}
	// cells disconnected through periodic-only links
	for k, v := range visited {
		if !v {
			order = append(order, k)
		}
	}
	return order, nil
}

const mortonBits = 21

// spread inserts two zero bits between the low mortonBits bits of x
func spread(x uint64) uint64 {
	x &= 1<<mortonBits - 1
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

func mortonKey(p, lo, hi r3.Vec) uint64 {
	q := func(v, a, b float64) uint64 {
		if b <= a {
			return 0
		}
		s := (v - a) / (b - a)
		return uint64(math.Min(math.Max(s, 0), 1) * float64(1<<mortonBits-1))
	}
	return spread(q(p.X, lo.X, hi.X)) | spread(q(p.Y, lo.Y, hi.Y))<<1 | spread(q(p.Z, lo.Z, hi.Z))<<2
}

// mortonOrder sorts the cells along the Z-order curve through their centers
func mortonOrder(t *tria.Triangulation, cells []tria.CellID) []int {
	lo, hi := t.BoundingBox()
	keys := make([]uint64, len(cells))
	order := make([]int, len(cells))
	for k, id := range cells {
		keys[k] = mortonKey(t.Cell(id).Center(), lo, hi)
		order[k] = k
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case keys[a] < keys[b]:
			return -1
		case keys[a] > keys[b]:
			return 1
		}
		return 0
	})
	return order
}

// createLayout groups cells by owner, keeping active order inside a part
func createLayout(cells []tria.CellID, weights []uint, owner []utils.SubdomainID, n int) *PartitionLayout {
	layout := &PartitionLayout{
		Partitions:    make([]Partition, n),
		TotalCells:    len(cells),
		NumPartitions: n,
		Owner:         owner,
		Local:         make([]int, len(cells)),
		index:         make(map[tria.CellID]int, len(cells)),
	}
	for i := range layout.Partitions {
		layout.Partitions[i].ID = utils.SubdomainID(i)
	}
	for k, id := range cells {
		p := &layout.Partitions[owner[k]]
		layout.Local[k] = len(p.Cells)
		layout.index[id] = k
		p.Cells = append(p.Cells, id)
		p.NumCells++
		p.Weight += weights[k]
	}
	for _, p := range layout.Partitions {
		layout.MaxCells = max(layout.MaxCells, p.NumCells)
	}
	for i := range layout.Partitions {
		layout.Partitions[i].MaxCells = layout.MaxCells
	}
	return layout
}
