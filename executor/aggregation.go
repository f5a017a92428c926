package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hnjylwb/pixels/executor/domain"
	"github.com/hnjylwb/pixels/executor/input"
	"github.com/hnjylwb/pixels/executor/operator"
	"github.com/hnjylwb/pixels/executor/plan"
)

// aggregationOperator compiles an aggregated table: partial-aggregation
// producers (scan workers for a base origin, the origin join's workers
// otherwise), an optional pre-aggregation stage when the producers exceed
// the threshold, and the final aggregation at the user's output endpoint.
func (e *Executor) aggregationOperator(ctx context.Context,
	aggregatedTable *plan.AggregatedTable) (*operator.AggregationOperator, error) {
	aggregation := aggregatedTable.Aggregation()
	origin := aggregation.OriginTable
	endPoint := aggregation.OutputEndPoint

	partialAggregationInfo := &domain.PartialAggregationInfo{
		GroupKeyColumnAlias: aggregation.GroupKeyColumnAlias,
		ResultColumnAlias:   aggregation.ResultColumnAlias,
		ResultColumnTypes:   aggregation.ResultColumnTypes,
		GroupKeyColumnIds:   aggregation.GroupKeyColumnIds,
		AggregateColumnIds:  aggregation.AggregateColumnIds,
		FunctionTypes:       aggregation.FunctionTypes,
	}

	finalOutputBase := endPoint.Folder
	if !strings.HasSuffix(finalOutputBase, "/") {
		finalOutputBase += "/"
	}
	intermediateBase := e.intermediateBase(aggregatedTable)
	finalStorageInfo := domain.StorageInfo{
		Scheme:    endPoint.Scheme,
		Endpoint:  endPoint.Endpoint,
		AccessKey: endPoint.AccessKey,
		SecretKey: endPoint.SecretKey,
	}

	var partialAggrFiles []string
	var scanInputs []*input.ScanInput
	var joinOperator operator.JoinOperator
	var preAggregate bool

	switch origin := origin.(type) {
	case *plan.BaseTable:
		inputSplits, err := e.inputSplits(ctx, origin)
		if err != nil {
			return nil, err
		}
		if len(inputSplits) == 0 {
			return nil, fmt.Errorf("%w: aggregation over %s has no input splits",
				ErrInvalidPlan, origin.TableName())
		}
		numScanInputs := (len(inputSplits) + e.parallelism - 1) / e.parallelism
		preAggregate = numScanInputs > e.preAggrThreshold

		filter, err := origin.Filter().MarshalJSONString()
		if err != nil {
			return nil, err
		}
		scanProjection := make([]bool, len(origin.ColumnNames()))
		for i := range scanProjection {
			scanProjection[i] = true
		}
		partialBase, partialStorage := intermediateBase, e.intermediateStorageInfo()
		if e.finalAggrInServer && !preAggregate {
			partialBase, partialStorage = finalOutputBase, finalStorageInfo
		}
		outputId := 0
		for _, r := range batches(len(inputSplits), e.parallelism) {
			fileName := partialBase + strconv.Itoa(outputId) + "/partial_aggr"
			outputId++
			scanInputs = append(scanInputs, &input.ScanInput{
				QueryId: e.queryId,
				TableInfo: domain.ScanTableInfo{
					TableName:     origin.TableName(),
					InputSplits:   inputSplits[r[0]:r[1]],
					ColumnsToRead: origin.ColumnNames(),
					Filter:        filter,
				},
				ScanProjection:            scanProjection,
				PartialAggregationPresent: true,
				PartialAggregationInfo:    partialAggregationInfo,
				Output: domain.OutputInfo{
					Path:        fileName,
					StorageInfo: partialStorage,
					Encoding:    true,
				},
			})
			partialAggrFiles = append(partialAggrFiles, fileName)
		}

	case *plan.JoinedTable:
		var err error
		joinOperator, err = e.joinOperator(ctx, origin, nil)
		if err != nil {
			return nil, err
		}
		if joinOperator.IncompleteChain() != nil {
			return nil, fmt.Errorf("%w: aggregation origin %s compiled to an incomplete chain join",
				ErrInvalidPlan, origin.TableName())
		}
		joinInputs := joinOperator.JoinInputs()
		if len(joinInputs) == 0 {
			return nil, fmt.Errorf("%w: aggregation over %s has no join inputs",
				ErrInvalidPlan, origin.TableName())
		}
		preAggregate = len(joinInputs) > e.preAggrThreshold

		partialBase, partialStorage := intermediateBase, e.intermediateStorageInfo()
		if e.finalAggrInServer && !preAggregate {
			partialBase, partialStorage = finalOutputBase, finalStorageInfo
		}
		for outputId, joinInput := range joinInputs {
			joinInput.SetPartialAggregation(partialAggregationInfo)
			fileName := "partial_aggr_" + strconv.Itoa(outputId)
			joinInput.RerouteOutput(partialStorage, partialBase, []string{fileName})
			partialAggrFiles = append(partialAggrFiles, partialBase+fileName)
		}

	default:
		return nil, fmt.Errorf("%w: origin of aggregation %s must be a base or joined table",
			ErrInvalidPlan, aggregatedTable.TableName())
	}

	// Pre-aggregate when there are too many partial results for one final
	// worker to merge.
	var preAggrInputs []*input.AggregationInput
	finalAggrInputFiles := partialAggrFiles
	if preAggregate {
		finalAggrInputFiles = nil
		groupKeyProjection := make([]bool, len(aggregation.GroupKeyColumnAlias))
		for i := range groupKeyProjection {
			groupKeyProjection[i] = true
		}
		// Pre-aggregation outputs stay on intermediate storage; only the
		// final stage writes to the user's endpoint.
		preAggrBase, preAggrStorage := intermediateBase, e.intermediateStorageInfo()
		outputId := 0
		for _, r := range batches(len(partialAggrFiles), e.preAggrThreshold) {
			fileName := preAggrBase + strconv.Itoa(outputId) + "/pre_aggr"
			outputId++
			preAggrInputs = append(preAggrInputs, &input.AggregationInput{
				QueryId:    e.queryId,
				InputFiles: partialAggrFiles[r[0]:r[1]],
				// Pre-aggregation outputs all the group-key columns.
				GroupKeyColumnNames:      aggregation.GroupKeyColumnAlias,
				GroupKeyColumnProjection: groupKeyProjection,
				ResultColumnNames:        aggregation.ResultColumnAlias,
				ResultColumnTypes:        aggregation.ResultColumnTypes,
				FunctionTypes:            aggregation.FunctionTypes,
				InputStorage:             e.intermediateStorageInfo(),
				Parallelism:              e.parallelism,
				Output: domain.OutputInfo{
					Path:        fileName,
					StorageInfo: preAggrStorage,
					Encoding:    true,
				},
			})
			finalAggrInputFiles = append(finalAggrInputFiles, fileName)
		}
	}

	finalInputStorage := e.intermediateStorageInfo()
	if e.finalAggrInServer && !preAggregate {
		finalInputStorage = finalStorageInfo
	}
	finalAggrInput := &input.AggregationInput{
		QueryId:                  e.queryId,
		InputFiles:               finalAggrInputFiles,
		GroupKeyColumnNames:      aggregation.GroupKeyColumnAlias,
		GroupKeyColumnProjection: aggregation.GroupKeyColumnProjection,
		ResultColumnNames:        aggregation.ResultColumnAlias,
		ResultColumnTypes:        aggregation.ResultColumnTypes,
		FunctionTypes:            aggregation.FunctionTypes,
		InputStorage:             finalInputStorage,
		Parallelism:              e.parallelism,
		Output: domain.OutputInfo{
			Path:        finalOutputBase + "final_aggr",
			StorageInfo: finalStorageInfo,
			Encoding:    true,
		},
	}

	aggregationOperator := operator.NewAggregationOperator(aggregatedTable.TableName(),
		finalAggrInput, preAggrInputs, scanInputs)
	aggregationOperator.SetChild(joinOperator)
	return aggregationOperator, nil
}
