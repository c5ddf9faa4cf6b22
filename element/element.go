package element

// Dimensionality represents the structural dimension of a mesh object
type Dimensionality uint8

const (
	D0 Dimensionality = iota // vertices
	D1                       // lines
	D2                       // quadrilaterals
	D3                       // hexahedra
)

// ElementGeometry identifies the shape of a hypercube object
type ElementGeometry uint8

const (
	Vertex ElementGeometry = iota
	Line
	Quad
	Hex
)

func (g ElementGeometry) String() string {
	switch g {
	case Vertex:
		return "Vertex"
	case Line:
		return "Line"
	case Quad:
		return "Quad"
	case Hex:
		return "Hex"
	}
	return "Unknown"
}

// ElementProperties contains the combinatorial description of a hypercube
type ElementProperties struct {
	Name       string          // Full descriptive name (e.g., "Hypercube Hexahedron")
	ShortName  string          // Abbreviated name (e.g., "Hex")
	Type       ElementGeometry // Object shape
	NVertices  int             // 2^d corners in lexicographic order
	NFaces     int             // 2d faces, face 2i+s fixes axis i at s
	NEdges     int             // d*2^(d-1) lines
	NChildren  int             // 2^d children under isotropic refinement
	Dimensions Dimensionality  // Structural dimension
}
