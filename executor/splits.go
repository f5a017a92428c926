package executor

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/hnjylwb/pixels/executor/domain"
	"github.com/hnjylwb/pixels/executor/layout"
	"github.com/hnjylwb/pixels/executor/plan"
	"github.com/hnjylwb/pixels/metadata"
)

// inputSplits sizes and emits the input splits of a base table, over every
// layout version the metadata service reports. Files on the ordered path
// count one row group each and are grouped splitSize files per split; files
// on the compact path are sliced into strides of splitSize row groups.
func (e *Executor) inputSplits(ctx context.Context, table *plan.BaseTable) ([]domain.InputSplit, error) {
	layouts, err := e.env.Metadata.GetLayouts(ctx, table.SchemaName(), table.TableName())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get layouts of %s.%s: %v",
			ErrMetadata, table.SchemaName(), table.TableName(), err)
	}
	stn := metadata.SchemaTableName{SchemaName: table.SchemaName(), TableName: table.TableName()}
	var splits []domain.InputSplit
	for _, lo := range layouts {
		order, err := lo.DecodeOrder()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMetadata, stn, err)
		}
		splitsConf, err := lo.DecodeSplits()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMetadata, stn, err)
		}
		columnSet := layout.NewColumnSet(order.ColumnOrder, table.ColumnNames())

		splitSize, err := e.splitSize(table, stn, lo, order, splitsConf, columnSet)
		if err != nil {
			return nil, err
		}
		glog.V(1).Infof("using split size %d for table %s", splitSize, stn)

		compactPath, err := e.compactPath(stn, lo, order, columnSet)
		if err != nil {
			return nil, err
		}

		if e.orderedPathEnabled {
			orderedPaths, err := e.env.Storage.ListPaths(lo.OrderPath)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to list ordered path of %s: %v", ErrStorage, stn, err)
			}
			for _, r := range batches(len(orderedPaths), splitSize) {
				infos := make([]domain.InputInfo, 0, r[1]-r[0])
				for _, path := range orderedPaths[r[0]:r[1]] {
					infos = append(infos, domain.InputInfo{Path: path, StartRowGroupIndex: 0, RowGroupCount: 1})
				}
				splits = append(splits, domain.InputSplit{InputInfos: infos})
			}
		}
		if e.compactPathEnabled {
			compactPaths, err := e.env.Storage.ListPaths(compactPath)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to list compact path of %s: %v", ErrStorage, stn, err)
			}
			for _, path := range compactPaths {
				for rg := 0; rg < splitsConf.NumRowGroupInBlock; rg += splitSize {
					splits = append(splits, domain.InputSplit{InputInfos: []domain.InputInfo{
						{Path: path, StartRowGroupIndex: rg, RowGroupCount: splitSize},
					}})
				}
			}
		}
	}
	return splits, nil
}

// splitSize resolves the split size for one layout: the fixed size when
// configured, otherwise the splits index's answer scaled by the table's
// selectivity and clamped to the index's maximum.
func (e *Executor) splitSize(table *plan.BaseTable, stn metadata.SchemaTableName,
	lo *metadata.Layout, order *metadata.Order, splitsConf *metadata.Splits,
	columnSet layout.ColumnSet) (int, error) {
	if e.fixedSplitSize > 0 {
		return e.fixedSplitSize, nil
	}
	index := e.env.Indexes.SplitsIndex(stn)
	if index == nil || index.Version() < lo.Version {
		if index == nil {
			glog.V(1).Infof("splits index of %s not cached, building", stn)
		} else {
			glog.V(1).Infof("splits index of %s is stale, rebuilding", stn)
		}
		var err error
		index, err = e.env.Indexes.RebuildSplitsIndex(stn, lo.Version, func() (layout.SplitsIndex, error) {
			return e.buildSplitsIndex(stn, lo.Version, order, splitsConf)
		})
		if err != nil {
			return 0, fmt.Errorf("%w: failed to build splits index of %s: %v", ErrMetadata, stn, err)
		}
	}
	splitSize := index.Search(columnSet).SplitSize
	glog.Infof("split size for table %s: %d from splits index", table.TableName(), splitSize)
	if selectivity := e.env.Advisor.TableSelectivity(table); selectivity >= 0 {
		if selectivity < 0.25 {
			splitSize *= 4
		} else if selectivity < 0.5 {
			splitSize *= 2
		}
		if splitSize > index.MaxSplitSize() {
			splitSize = index.MaxSplitSize()
		}
		glog.Infof("split size for table %s: %d after selectivity adjustment",
			table.TableName(), splitSize)
	}
	return splitSize, nil
}

func (e *Executor) buildSplitsIndex(stn metadata.SchemaTableName, version int,
	order *metadata.Order, splitsConf *metadata.Splits) (layout.SplitsIndex, error) {
	switch e.env.Config.SplitsIndexType() {
	case "inverted":
		return layout.NewInvertedSplitsIndex(version, order, splitsConf)
	case "cost_based":
		if e.env.Stats == nil {
			return nil, fmt.Errorf("cost-based splits index requires a statistics collector")
		}
		return layout.NewCostBasedSplitsIndex(version, e.env.Stats.Get(stn.TableName),
			layout.DefaultTargetSplitBytes, splitsConf.NumRowGroupInBlock)
	default:
		return nil, fmt.Errorf("unsupported splits index type %q", e.env.Config.SplitsIndexType())
	}
}

// compactPath returns the layout's compact path, replaced by a
// projection-optimized path when projection read is enabled and a
// projection pattern covers the accessed columns.
func (e *Executor) compactPath(stn metadata.SchemaTableName, lo *metadata.Layout,
	order *metadata.Order, columnSet layout.ColumnSet) (string, error) {
	if !e.compactPathEnabled || !e.projectionRead {
		return lo.CompactPath, nil
	}
	index := e.env.Indexes.ProjectionsIndex(stn)
	if index == nil || index.Version() < lo.Version {
		projections, err := lo.DecodeProjections()
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrMalformedMetadata, stn, err)
		}
		index, err = e.env.Indexes.RebuildProjectionsIndex(stn, lo.Version,
			func() (layout.ProjectionsIndex, error) {
				return layout.NewInvertedProjectionsIndex(lo.Version, order, projections), nil
			})
		if err != nil {
			return "", fmt.Errorf("%w: failed to build projections index of %s: %v", ErrMetadata, stn, err)
		}
	}
	if pattern := index.Search(columnSet); pattern != nil {
		glog.V(1).Infof("projection pattern found for %s, path=%s", stn, pattern.Path)
		return pattern.Path, nil
	}
	return lo.CompactPath, nil
}
