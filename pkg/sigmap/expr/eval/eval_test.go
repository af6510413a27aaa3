package eval

import (
	"testing"
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/expr/compile"
	"github.com/jabolina/go-sigmap/pkg/sigmap/expr/parser"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

func compileProg(t *testing.T, src string, ctx compile.Context) *types.Program {
	t.Helper()
	ast, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse(%q): %v", src, err)
	}
	prog, err := compile.Compile(src, ast, ctx)
	if err != nil {
		t.Fatalf("compile(%q): %v", src, err)
	}
	return prog
}

// TestLinearScenario is spec.md §8's literal scenario 1: a direct linear
// range-mapped connection.
func TestLinearScenario(t *testing.T) {
	ctx := compile.Context{
		SourceType: []types.ValueType{types.TypeFloat32},
		SourceLen:  []int{1},
		DestType:   types.TypeFloat32,
		DestLen:    1,
	}
	prog := compileProg(t, "y=linear(x,0,100,0,1)", ctx)
	e := NewEvaluator(prog)
	now := time.Unix(1000, 0)
	e.UpdateSource(0, []float64{50}, now)
	dest, _, muted, err := e.Eval(0, now)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if muted {
		t.Fatalf("unexpected mute")
	}
	if dest[0] != 0.5 {
		t.Fatalf("dest = %v, want 0.5", dest)
	}
}

// TestConvergentMapScenario is scenario 2: a 3-source convergent map.
func TestConvergentMapScenario(t *testing.T) {
	ctx := compile.Context{
		SourceType: []types.ValueType{types.TypeFloat32, types.TypeFloat32, types.TypeFloat32},
		SourceLen:  []int{1, 1, 1},
		DestType:   types.TypeFloat32,
		DestLen:    1,
	}
	prog := compileProg(t, "y=x0+x1+x2", ctx)
	e := NewEvaluator(prog)
	now := time.Unix(2000, 0)
	e.UpdateSource(0, []float64{1}, now)
	e.UpdateSource(1, []float64{2}, now)
	e.UpdateSource(2, []float64{3}, now)
	dest, _, _, err := e.Eval(0, now)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if dest[0] != 6 {
		t.Fatalf("dest = %v, want 6", dest)
	}
}

// TestHistoryChainScenario is scenario 3: y=x+y{-1} with an initial value.
func TestHistoryChainScenario(t *testing.T) {
	ctx := compile.Context{
		SourceType: []types.ValueType{types.TypeFloat32},
		SourceLen:  []int{1},
		DestType:   types.TypeFloat32,
		DestLen:    1,
	}
	prog := compileProg(t, "y=x+y{-1}; y{-1}=100", ctx)
	e := NewEvaluator(prog)
	now := time.Unix(3000, 0)
	e.UpdateSource(0, []float64{5}, now)
	dest, _, _, err := e.Eval(0, now)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if dest[0] != 105 {
		t.Fatalf("dest = %v, want 105 (100 initial + 5)", dest)
	}
	e.UpdateSource(0, []float64{5}, now.Add(time.Millisecond))
	dest2, _, _, err := e.Eval(0, now.Add(time.Millisecond))
	if err != nil {
		t.Fatalf("eval 2: %v", err)
	}
	if dest2[0] != 110 {
		t.Fatalf("dest2 = %v, want 110", dest2)
	}
}

// TestTimestampDeltaScenario is scenario 6: an expression referencing t_x
// and the previous tick's t_y.
func TestTimestampDeltaScenario(t *testing.T) {
	ctx := compile.Context{
		SourceType: []types.ValueType{types.TypeFloat64},
		SourceLen:  []int{1},
		DestType:   types.TypeFloat64,
		DestLen:    1,
	}
	prog := compileProg(t, "y=t_x-t_y{-1}", ctx)
	e := NewEvaluator(prog)
	t0 := time.Unix(1000, 0)
	e.UpdateSource(0, []float64{1}, t0)
	if _, _, _, err := e.Eval(0, t0); err == nil {
		t.Fatalf("expected a history error on the very first tick (no prior t_y)")
	}
}

func TestHistoryOutOfBoundsDropsSample(t *testing.T) {
	ctx := compile.Context{
		SourceType: []types.ValueType{types.TypeFloat32},
		SourceLen:  []int{1},
		DestType:   types.TypeFloat32,
		DestLen:    1,
	}
	prog := compileProg(t, "y=x{-2}", ctx)
	e := NewEvaluator(prog)
	now := time.Unix(4000, 0)
	e.UpdateSource(0, []float64{1}, now)
	if _, _, _, err := e.Eval(0, now); err == nil {
		t.Fatalf("expected Computation error for out-of-range history")
	} else if !types.Is(err, types.KindComputation) {
		t.Fatalf("expected KindComputation, got %v", err)
	}
}

func TestReductionSum(t *testing.T) {
	ctx := compile.Context{
		SourceType: []types.ValueType{types.TypeFloat32},
		SourceLen:  []int{3},
		DestType:   types.TypeFloat32,
		DestLen:    1,
	}
	prog := compileProg(t, "y=sum(x)", ctx)
	e := NewEvaluator(prog)
	now := time.Unix(5000, 0)
	e.UpdateSource(0, []float64{1, 2, 3}, now)
	dest, _, _, err := e.Eval(0, now)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if dest[0] != 6 {
		t.Fatalf("dest = %v, want 6", dest)
	}
}

func TestReductionOverCompoundArgument(t *testing.T) {
	ctx := compile.Context{
		SourceType: []types.ValueType{types.TypeFloat32},
		SourceLen:  []int{3},
		DestType:   types.TypeFloat32,
		DestLen:    1,
	}
	prog := compileProg(t, "y=sum(x*2)", ctx)
	e := NewEvaluator(prog)
	now := time.Unix(5000, 0)
	e.UpdateSource(0, []float64{1, 2, 3}, now)
	dest, _, _, err := e.Eval(0, now)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if dest[0] != 12 {
		t.Fatalf("dest = %v, want 12", dest)
	}
}

func TestReductionOverFunctionCallArgument(t *testing.T) {
	ctx := compile.Context{
		SourceType: []types.ValueType{types.TypeFloat32},
		SourceLen:  []int{3},
		DestType:   types.TypeFloat32,
		DestLen:    1,
	}
	prog := compileProg(t, "y=sum(abs(x))", ctx)
	e := NewEvaluator(prog)
	now := time.Unix(5000, 0)
	e.UpdateSource(0, []float64{-1, 2, -3}, now)
	dest, _, _, err := e.Eval(0, now)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if dest[0] != 6 {
		t.Fatalf("dest = %v, want 6", dest)
	}
}

func TestEma(t *testing.T) {
	ctx := compile.Context{
		SourceType: []types.ValueType{types.TypeFloat32},
		SourceLen:  []int{1},
		DestType:   types.TypeFloat32,
		DestLen:    1,
	}
	prog := compileProg(t, "y=ema(x,0.5)", ctx)
	e := NewEvaluator(prog)
	now := time.Unix(6000, 0)
	e.UpdateSource(0, []float64{10}, now)
	dest, _, _, err := e.Eval(0, now)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if dest[0] != 5 {
		t.Fatalf("dest = %v, want 5 (ema from zero state)", dest)
	}
}
