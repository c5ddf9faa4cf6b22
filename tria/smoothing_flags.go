package tria

import (
	"fmt"
	"strings"
)

// MeshSmoothing selects the additional flagging done before each
// refinement to keep the mesh well graded.
type MeshSmoothing uint32

const (
	None MeshSmoothing = 0x0

	// LimitLevelDifferenceAtVertices keeps active cells sharing a vertex
	// within one level of each other.
	LimitLevelDifferenceAtVertices MeshSmoothing = 0x1
	// EliminateUnrefinedIslands refines unflagged cells whose neighbors
	// across interior faces are mostly refined.
	EliminateUnrefinedIslands MeshSmoothing = 0x2
	// PatchLevel1 keeps every active cell in a patch: a parent whose
	// children are all active.
	PatchLevel1 MeshSmoothing = 0x4
	// CoarsestLevel1 keeps every level-0 cell refined.
	CoarsestLevel1 MeshSmoothing = 0x8
	// AllowAnisotropicSmoothing has no effect with isotropic refinement.
	AllowAnisotropicSmoothing MeshSmoothing = 0x10

	// EliminateRefinedInnerIslands coarsens a refined interior cell none
	// of whose neighbors is refined.
	EliminateRefinedInnerIslands MeshSmoothing = 0x100
	// EliminateRefinedBoundaryIslands does the same for boundary cells.
	EliminateRefinedBoundaryIslands MeshSmoothing = 0x200
	// DoNotProduceUnrefinedIslands refuses coarsening that would leave a
	// cell mostly surrounded by refined neighbors.
	DoNotProduceUnrefinedIslands MeshSmoothing = 0x400

	SmoothingOnRefinement = LimitLevelDifferenceAtVertices | EliminateUnrefinedIslands
	SmoothingOnCoarsening = EliminateRefinedInnerIslands | EliminateRefinedBoundaryIslands |
		DoNotProduceUnrefinedIslands
	MaximumSmoothing = 0xffff ^ AllowAnisotropicSmoothing
)

var smoothingNames = []struct {
	flag MeshSmoothing
	name string
}{
	{LimitLevelDifferenceAtVertices, "limit_level_difference_at_vertices"},
	{EliminateUnrefinedIslands, "eliminate_unrefined_islands"},
	{PatchLevel1, "patch_level_1"},
	{CoarsestLevel1, "coarsest_level_1"},
	{AllowAnisotropicSmoothing, "allow_anisotropic_smoothing"},
	{EliminateRefinedInnerIslands, "eliminate_refined_inner_islands"},
	{EliminateRefinedBoundaryIslands, "eliminate_refined_boundary_islands"},
	{DoNotProduceUnrefinedIslands, "do_not_produce_unrefined_islands"},
}

// Has reports whether all bits of flag are set
func (s MeshSmoothing) Has(flag MeshSmoothing) bool { return s&flag == flag }

// Validate rejects combinations that cannot be honored together
func (s MeshSmoothing) Validate() error {
	if s.Has(AllowAnisotropicSmoothing) && s.Has(LimitLevelDifferenceAtVertices) {
		return fmt.Errorf("%w: allow_anisotropic_smoothing cannot be combined with limit_level_difference_at_vertices", ErrInvalidSmoothing)
	}
	return nil
}

func (s MeshSmoothing) String() string {
	switch s {
	case None:
		return "none"
	case MaximumSmoothing:
		return "maximum_smoothing"
	}
	var parts []string
	for _, n := range smoothingNames {
		if s.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseMeshSmoothing combines flag names as produced by String. The group
// names smoothing_on_refinement, smoothing_on_coarsening and
// maximum_smoothing are accepted too.
func ParseMeshSmoothing(names []string) (MeshSmoothing, error) {
	var s MeshSmoothing
	for _, name := range names {
		switch name {
		case "none":
			continue
		case "smoothing_on_refinement":
			s |= SmoothingOnRefinement
			continue
		case "smoothing_on_coarsening":
			s |= SmoothingOnCoarsening
			continue
		case "maximum_smoothing":
			s |= MaximumSmoothing
			continue
		}
		found := false
		for _, n := range smoothingNames {
			if n.name == name {
				s |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: unknown flag %q", ErrInvalidSmoothing, name)
		}
	}
	return s, s.Validate()
}
