package layout

import (
	"sync"
	"sync/atomic"

	"github.com/hnjylwb/pixels/metadata"
)

// Factory caches the splits and projections indices per table, process
// wide. Lookups are lock-free reads of the latest snapshot; rebuilds
// serialize per table and atomically publish a new snapshot, so readers may
// observe a stale-but-valid index but never a partially built one.
type Factory struct {
	splits      atomic.Pointer[map[metadata.SchemaTableName]SplitsIndex]
	projections atomic.Pointer[map[metadata.SchemaTableName]ProjectionsIndex]
	publishMu   sync.Mutex
	keyLocks    sync.Map // metadata.SchemaTableName -> *sync.Mutex
}

// NewFactory creates an empty index factory.
func NewFactory() *Factory {
	f := &Factory{}
	emptySplits := map[metadata.SchemaTableName]SplitsIndex{}
	emptyProjections := map[metadata.SchemaTableName]ProjectionsIndex{}
	f.splits.Store(&emptySplits)
	f.projections.Store(&emptyProjections)
	return f
}

// SplitsIndex returns the cached splits index for the table, or nil.
func (f *Factory) SplitsIndex(name metadata.SchemaTableName) SplitsIndex {
	return (*f.splits.Load())[name]
}

// ProjectionsIndex returns the cached projections index for the table, or
// nil.
func (f *Factory) ProjectionsIndex(name metadata.SchemaTableName) ProjectionsIndex {
	return (*f.projections.Load())[name]
}

func (f *Factory) keyLock(name metadata.SchemaTableName) *sync.Mutex {
	lock, _ := f.keyLocks.LoadOrStore(name, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// RebuildSplitsIndex rebuilds the splits index for the table with build and
// publishes it. Concurrent rebuilds of the same table serialize; the loser
// reuses the winner's index when it is already at the required version.
func (f *Factory) RebuildSplitsIndex(name metadata.SchemaTableName, version int,
	build func() (SplitsIndex, error)) (SplitsIndex, error) {
	lock := f.keyLock(name)
	lock.Lock()
	defer lock.Unlock()
	if current := f.SplitsIndex(name); current != nil && current.Version() >= version {
		return current, nil
	}
	index, err := build()
	if err != nil {
		return nil, err
	}
	f.publishMu.Lock()
	defer f.publishMu.Unlock()
	old := *f.splits.Load()
	next := make(map[metadata.SchemaTableName]SplitsIndex, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[name] = index
	f.splits.Store(&next)
	return index, nil
}

// RebuildProjectionsIndex is the projections counterpart of
// RebuildSplitsIndex.
func (f *Factory) RebuildProjectionsIndex(name metadata.SchemaTableName, version int,
	build func() (ProjectionsIndex, error)) (ProjectionsIndex, error) {
	lock := f.keyLock(name)
	lock.Lock()
	defer lock.Unlock()
	if current := f.ProjectionsIndex(name); current != nil && current.Version() >= version {
		return current, nil
	}
	index, err := build()
	if err != nil {
		return nil, err
	}
	f.publishMu.Lock()
	defer f.publishMu.Unlock()
	old := *f.projections.Load()
	next := make(map[metadata.SchemaTableName]ProjectionsIndex, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[name] = index
	f.projections.Store(&next)
	return index, nil
}
