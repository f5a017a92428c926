package executor

import (
	"github.com/golang/glog"

	"github.com/hnjylwb/pixels/executor/domain"
	"github.com/hnjylwb/pixels/executor/plan"
)

// adjustInputSplitsForBroadcastJoin re-packs the large side's input splits
// of a broadcast join whose outputs every parent worker has to read. With
// many workers and a small side far more selective than the large side,
// fewer, larger splits cut the number of workers and thus the repeated
// reads of this join's output.
//
// The adjustment applies only above 32 workers and only when the small
// side's selectivity is below a quarter of the large side's; the original
// additionally experimented with a cap on split counts, which is
// deliberately not applied here.
func (e *Executor) adjustInputSplitsForBroadcastJoin(smallTable, largeTable plan.Table,
	largeInputSplits []domain.InputSplit) []domain.InputSplit {
	numWorkers := len(largeInputSplits) / e.parallelism
	if numWorkers <= 32 {
		// Few enough workers not to matter.
		return largeInputSplits
	}
	smallSelectivity := e.env.Advisor.TableSelectivity(smallTable)
	largeSelectivity := e.env.Advisor.TableSelectivity(largeTable)
	if smallSelectivity < 0 || largeSelectivity <= 0 || smallSelectivity >= largeSelectivity {
		return largeInputSplits
	}
	if smallSelectivity/largeSelectivity >= 0.25 {
		// Do not adjust too aggressively.
		return largeInputSplits
	}
	numSplits := len(largeInputSplits)
	var inputInfos []domain.InputInfo
	for _, split := range largeInputSplits {
		inputInfos = append(inputInfos, split.InputInfos...)
	}
	inputInfosPerSplit := (len(inputInfos) + numSplits - 1) / numSplits
	inputInfosPerSplit *= 2
	glog.Infof("increasing the split size of table '%s' by factor of 2", largeTable.TableName())

	var adjusted []domain.InputSplit
	for _, r := range batches(len(inputInfos), inputInfosPerSplit) {
		adjusted = append(adjusted, domain.InputSplit{InputInfos: inputInfos[r[0]:r[1]]})
	}
	return adjusted
}
