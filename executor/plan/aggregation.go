package plan

import (
	"fmt"

	"github.com/hnjylwb/pixels/executor/domain"
	"github.com/hnjylwb/pixels/storage"
)

// OutputEndPoint is the user-specified destination of the final aggregation
// result.
type OutputEndPoint struct {
	Scheme    storage.Scheme
	Folder    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Aggregation is the aggregation node of an aggregated table.
type Aggregation struct {
	OriginTable              Table
	GroupKeyColumnIds        []int
	GroupKeyColumnAlias      []string
	GroupKeyColumnProjection []bool
	AggregateColumnIds       []int
	ResultColumnAlias        []string
	ResultColumnTypes        []string
	FunctionTypes            []domain.FunctionType
	OutputEndPoint           OutputEndPoint
}

// NewAggregation validates and creates an aggregation node. The origin must
// be a base or joined table; the group-key alias/projection lists and the
// aggregate id/alias/type/function lists must agree in length.
func NewAggregation(origin Table,
	groupKeyColumnIds []int, groupKeyColumnAlias []string, groupKeyColumnProjection []bool,
	aggregateColumnIds []int, resultColumnAlias []string, resultColumnTypes []string,
	functionTypes []domain.FunctionType, endPoint OutputEndPoint) (*Aggregation, error) {
	if origin == nil {
		return nil, fmt.Errorf("%w: aggregation has no origin table", ErrInvalidPlan)
	}
	name := origin.TableName()
	if origin.TableType() != TypeBase && origin.TableType() != TypeJoined {
		return nil, fmt.Errorf("%w: aggregation over %s must originate from a base or joined table",
			ErrInvalidPlan, name)
	}
	if len(groupKeyColumnIds) != len(groupKeyColumnAlias) ||
		len(groupKeyColumnIds) != len(groupKeyColumnProjection) {
		return nil, fmt.Errorf("%w: aggregation over %s has mismatched group-key lists",
			ErrInvalidPlan, name)
	}
	if len(aggregateColumnIds) == 0 {
		return nil, fmt.Errorf("%w: aggregation over %s has no aggregate columns", ErrInvalidPlan, name)
	}
	if len(aggregateColumnIds) != len(resultColumnAlias) ||
		len(aggregateColumnIds) != len(resultColumnTypes) ||
		len(aggregateColumnIds) != len(functionTypes) {
		return nil, fmt.Errorf("%w: aggregation over %s has mismatched result lists",
			ErrInvalidPlan, name)
	}
	numColumns := len(origin.ColumnNames())
	for _, id := range groupKeyColumnIds {
		if id < 0 || id >= numColumns {
			return nil, fmt.Errorf("%w: aggregation over %s group key column id %d out of range",
				ErrInvalidPlan, name, id)
		}
	}
	for _, id := range aggregateColumnIds {
		if id < 0 || id >= numColumns {
			return nil, fmt.Errorf("%w: aggregation over %s aggregate column id %d out of range",
				ErrInvalidPlan, name, id)
		}
	}
	if endPoint.Folder == "" {
		return nil, fmt.Errorf("%w: aggregation over %s has no output folder", ErrInvalidPlan, name)
	}
	return &Aggregation{
		OriginTable:              origin,
		GroupKeyColumnIds:        groupKeyColumnIds,
		GroupKeyColumnAlias:      groupKeyColumnAlias,
		GroupKeyColumnProjection: groupKeyColumnProjection,
		AggregateColumnIds:       aggregateColumnIds,
		ResultColumnAlias:        resultColumnAlias,
		ResultColumnTypes:        resultColumnTypes,
		FunctionTypes:            functionTypes,
		OutputEndPoint:           endPoint,
	}, nil
}
