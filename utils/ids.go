package utils

import "math"

// ManifoldID selects the geometry description used to place new points on
// an object. Objects carrying FlatManifoldID are always interpolated linearly.
type ManifoldID uint32

// BoundaryID tags faces (and, in 3D, edges) lying on the domain boundary.
type BoundaryID uint32

// MaterialID tags cells.
type MaterialID uint32

// SubdomainID records which partition owns a cell.
type SubdomainID uint32

const (
	FlatManifoldID         ManifoldID  = math.MaxUint32
	InternalFaceBoundaryID BoundaryID  = math.MaxUint32 // interior objects, never a real boundary tag
	InvalidMaterialID      MaterialID  = math.MaxUint32
	InvalidSubdomainID     SubdomainID = math.MaxUint32
	ArtificialSubdomainID  SubdomainID = math.MaxUint32 - 1
)
