// Package join defines the join enumerations shared by the plan IR, the
// worker-input descriptors, and the plan compiler, plus the Advisor the
// compiler consults for partition counts and selectivity.
package join

// Type is the logical join type. All joins are equi-joins.
type Type string

const (
	TypeUnknown   Type = "UNKNOWN"
	TypeEquiInner Type = "EQUI_INNER"
	TypeEquiLeft  Type = "EQUI_LEFT"
	TypeEquiRight Type = "EQUI_RIGHT"
	TypeEquiFull  Type = "EQUI_FULL"
)

// Flip mirrors the join type when the two sides swap.
func (t Type) Flip() Type {
	switch t {
	case TypeEquiLeft:
		return TypeEquiRight
	case TypeEquiRight:
		return TypeEquiLeft
	default:
		return t
	}
}

// IsOuter reports whether the join keeps unmatched rows of the (possibly
// flipped) left side.
func (t Type) IsOuter() bool {
	return t == TypeEquiLeft || t == TypeEquiRight || t == TypeEquiFull
}

// Algorithm is the physical join algorithm.
type Algorithm string

const (
	AlgoBroadcast        Algorithm = "BROADCAST"
	AlgoPartitioned      Algorithm = "PARTITIONED"
	AlgoBroadcastChain   Algorithm = "BROADCAST_CHAIN"
	AlgoPartitionedChain Algorithm = "PARTITIONED_CHAIN"
)

// Endian tells which side of a join is the smaller one.
type Endian string

const (
	SmallLeft Endian = "SMALL_LEFT"
	LargeLeft Endian = "LARGE_LEFT"
)
