// Package executor compiles a logical join/aggregation plan into the DAG of
// serverless worker invocations that executes it: scan, partition,
// broadcast-join, partitioned-join, chain-join, and aggregation inputs,
// connected by intermediate files on object storage and grouped into an
// operator tree that drives submission order.
package executor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hnjylwb/pixels/config"
	"github.com/hnjylwb/pixels/executor/domain"
	"github.com/hnjylwb/pixels/executor/join"
	"github.com/hnjylwb/pixels/executor/layout"
	"github.com/hnjylwb/pixels/executor/operator"
	"github.com/hnjylwb/pixels/executor/plan"
	"github.com/hnjylwb/pixels/metadata"
	"github.com/hnjylwb/pixels/stats"
	"github.com/hnjylwb/pixels/storage"
)

// Env bundles the collaborators the compiler consults. The compiler is a
// pure function over (plan, env): it holds no global state and mutates
// nothing but the env's index cache.
type Env struct {
	Config   *config.Config
	Metadata metadata.Service
	Storage  storage.Storage
	Advisor  join.Advisor
	Indexes  *layout.Factory
	// Stats backs the cost-based splits index; optional when the inverted
	// index is configured.
	Stats *stats.Collector
}

// DefaultEnv assembles the default collaborators from the configuration: an
// HTTP metadata client against the configured server, the registered
// storage backend of the input scheme, and a statistics-backed advisor.
// Deployments with remote storage register their backends on a factory and
// build the Env themselves.
func DefaultEnv(cfg *config.Config) (Env, error) {
	scheme, err := storage.SchemeFrom(cfg.InputStorage())
	if err != nil {
		return Env{}, err
	}
	store, err := storage.NewFactory().ForScheme(scheme)
	if err != nil {
		return Env{}, err
	}
	collector := stats.NewCollector()
	return Env{
		Config:   cfg,
		Metadata: metadata.NewClient(cfg.MetadataServerHost(), cfg.MetadataServerPort()),
		Storage:  store,
		Advisor:  join.NewStatsAdvisor(collector),
		Indexes:  layout.NewFactory(),
		Stats:    collector,
	}, nil
}

// Executor compiles one query's plan. Create one per compilation.
type Executor struct {
	queryId   int64
	rootTable plan.Table
	env       Env

	orderedPathEnabled bool
	compactPathEnabled bool

	inputScheme        storage.Scheme
	intermediateScheme storage.Scheme
	intermediateFolder string
	parallelism        int
	preAggrThreshold   int
	fixedSplitSize     int
	projectionRead     bool
	finalAggrInServer  bool
}

// New creates an executor for the plan rooted at rootTable. The root must
// be a joined or an aggregated table.
func New(queryId int64, rootTable plan.Table, env Env,
	orderedPathEnabled, compactPathEnabled bool) (*Executor, error) {
	if rootTable == nil {
		return nil, fmt.Errorf("%w: root table is nil", ErrInvalidPlan)
	}
	if t := rootTable.TableType(); t != plan.TypeJoined && t != plan.TypeAggregated {
		return nil, fmt.Errorf("%w: root table %s is a %s table, only joined and aggregated roots are supported",
			ErrInvalidPlan, rootTable.TableName(), t)
	}
	if env.Config == nil || env.Metadata == nil || env.Storage == nil ||
		env.Advisor == nil || env.Indexes == nil {
		return nil, fmt.Errorf("executor env is missing a collaborator")
	}
	inputScheme, err := storage.SchemeFrom(env.Config.InputStorage())
	if err != nil {
		return nil, err
	}
	intermediateScheme, err := storage.SchemeFrom(env.Config.IntermediateStorage())
	if err != nil {
		return nil, err
	}
	return &Executor{
		queryId:            queryId,
		rootTable:          rootTable,
		env:                env,
		orderedPathEnabled: orderedPathEnabled,
		compactPathEnabled: compactPathEnabled,
		inputScheme:        inputScheme,
		intermediateScheme: intermediateScheme,
		intermediateFolder: env.Config.IntermediateFolder(),
		parallelism:        env.Config.IntraWorkerParallelism(),
		preAggrThreshold:   env.Config.PreAggrThreshold(),
		fixedSplitSize:     env.Config.FixedSplitSize(),
		projectionRead:     env.Config.ProjectionReadEnabled(),
		finalAggrInServer:  env.Config.ComputeFinalAggrInServer(),
	}, nil
}

// RootOperator compiles the plan and returns the root of the operator
// tree.
func (e *Executor) RootOperator(ctx context.Context) (operator.Operator, error) {
	switch root := e.rootTable.(type) {
	case *plan.JoinedTable:
		op, err := e.joinOperator(ctx, root, nil)
		if err != nil {
			return nil, err
		}
		if op.IncompleteChain() != nil {
			return nil, fmt.Errorf("%w: join %s compiled to an incomplete chain join at the root",
				ErrInvalidPlan, root.TableName())
		}
		return op, nil
	case *plan.AggregatedTable:
		return e.aggregationOperator(ctx, root)
	default:
		return nil, fmt.Errorf("%w: unsupported root table type %s",
			ErrInvalidPlan, e.rootTable.TableType())
	}
}

// intermediateBase returns the intermediate directory of a table's outputs:
// <intermediateRoot>/<queryId>/<schema>/<table>/.
func (e *Executor) intermediateBase(table plan.Table) string {
	return e.intermediateFolder + strconv.FormatInt(e.queryId, 10) + "/" +
		table.SchemaName() + "/" + table.TableName() + "/"
}

func (e *Executor) intermediateStorageInfo() domain.StorageInfo {
	return domain.StorageInfo{Scheme: e.intermediateScheme}
}

func (e *Executor) inputStorageInfo() domain.StorageInfo {
	return domain.StorageInfo{Scheme: e.inputScheme}
}

// batches cuts n items into consecutive index ranges of at most size.
func batches(n, size int) [][2]int {
	if n == 0 {
		return nil
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
