package core

import (
	"github.com/jabolina/go-sigmap/pkg/sigmap/expr/compile"
	"github.com/jabolina/go-sigmap/pkg/sigmap/expr/parser"
	"github.com/jabolina/go-sigmap/pkg/sigmap/graph"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// MapMachine advances a staged MapSpec through spec.md §4.E's lifecycle:
//
//	staged  → ready   : all endpoint signals resolved in the graph, the
//	                     expression compiles, the destination accepts it
//	ready   → active  : the first data packet is scheduled
//	active  → expired : liveness is lost for the map's scope
//	any     → removed : /unmap received or local destroy
type MapMachine struct {
	store *graph.Store
}

// NewMapMachine builds a MapMachine resolving endpoints against store.
func NewMapMachine(store *graph.Store) *MapMachine {
	return &MapMachine{store: store}
}

// TryReady attempts the staged→ready transition. It returns the first
// unresolved reason (empty on success).
func (mm *MapMachine) TryReady(m *types.MapSpec) error {
	if m.Status != types.MapStaged {
		return nil
	}

	var sourceTypes []types.ValueType
	var sourceLens []int
	for _, ref := range m.Sources {
		sig := mm.resolve(ref)
		if sig == nil {
			return types.NewError(types.KindSchemaMismatch, "MapMachine.TryReady", nil)
		}
		sourceTypes = append(sourceTypes, sig.ValueType)
		sourceLens = append(sourceLens, sig.Length)
	}
	dest := mm.resolve(m.Dest)
	if dest == nil {
		return types.NewError(types.KindSchemaMismatch, "MapMachine.TryReady", nil)
	}

	if m.Expression != "" {
		ast, err := parser.Parse(m.Expression)
		if err != nil {
			return err
		}
		prog, err := compile.Compile(m.Expression, ast, compile.Context{
			SourceType: sourceTypes,
			SourceLen:  sourceLens,
			DestType:   dest.ValueType,
			DestLen:    dest.Length,
		})
		if err != nil {
			return err
		}
		m.Program = prog
	}

	m.Status = types.MapReady
	return nil
}

func (mm *MapMachine) resolve(ref types.SignalRef) *types.Signal {
	for _, sig := range mm.store.Signals(func(s *types.Signal) bool {
		return s.Device == ref.Device && s.Name == ref.Path
	}) {
		return sig
	}
	return nil
}

// Activate performs the ready→active transition, fired when the first data
// packet for the map is scheduled.
func (mm *MapMachine) Activate(m *types.MapSpec) {
	if m.Status == types.MapReady {
		m.Status = types.MapActive
	}
}

// Expire performs the active→expired transition when liveness is lost for
// the map's scope.
func (mm *MapMachine) Expire(m *types.MapSpec) {
	if m.Status == types.MapActive {
		m.Status = types.MapExpired
	}
}

// Wins reports whether local's 64-bit id wins the tie-break against remote
// when two peers race to create equivalent maps: the lexicographically
// (here, numerically - equivalent for fixed-width ids) smaller id wins, per
// spec.md §4.E.
func Wins(local, remote types.ID) bool {
	return local < remote
}
