package compile

import (
	"github.com/jabolina/go-sigmap/pkg/sigmap/expr/parser"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// emitCall dispatches a function call to a scalar/vector builtin, a
// stateful single-sample filter (ema/schmitt), or a vector reduction.
func (c *compiler) emitCall(e parser.Call) (types.ValueType, int, error) {
	switch {
	case reduceNames[e.Name] && !((e.Name == "min" || e.Name == "max") && len(e.Args) == 2):
		return c.emitReduce(e)
	case statefulNames[e.Name]:
		return c.emitStateful(e)
	default:
		return c.emitScalarFn(e)
	}
}

func (c *compiler) emitScalarFn(e parser.Call) (types.ValueType, int, error) {
	arity, known := scalarFnArity[e.Name]
	if known && len(e.Args) != arity {
		return 0, 0, compileErr("wrong number of arguments to " + e.Name)
	}
	length := 1
	typ := types.TypeFloat64
	for _, a := range e.Args {
		t, l, err := c.emit(a)
		if err != nil {
			return 0, 0, err
		}
		if l > length {
			length = l
		}
		typ = widest(typ, t)
	}
	kind := types.FnScalar
	if (e.Name == "min" || e.Name == "max") && len(e.Args) == 2 {
		kind = types.FnVector
	}
	c.tokens = append(c.tokens, types.Token{
		Kind: types.TokCall, FnName: e.Name, FnKind: kind, Arity: len(e.Args),
		Type: typ, VecLen: length,
	})
	return typ, length, nil
}

// emitStateful compiles ema(x,a) / schmitt(x,lo,hi): single-sample filters
// that carry implicit state across ticks, generalizing original_source's
// filter-coefficient builtins (SPEC_FULL.md §12.3). The hidden state lives
// in a synthesized user variable the evaluator updates in place.
func (c *compiler) emitStateful(e parser.Call) (types.ValueType, int, error) {
	wantArity := 2
	if e.Name == "schmitt" {
		wantArity = 3
	}
	if len(e.Args) != wantArity {
		return 0, 0, compileErr(e.Name + " requires " + itoa(wantArity) + " arguments")
	}
	length := 1
	for _, a := range e.Args {
		_, l, err := c.emit(a)
		if err != nil {
			return 0, 0, err
		}
		if l > length {
			length = l
		}
	}
	hiddenIdx := c.declareHidden(e.Name, length)
	c.tokens = append(c.tokens, types.Token{
		Kind: types.TokReduce, FnName: e.Name, FnKind: types.FnReduce, Arity: len(e.Args),
		VarIndex: hiddenIdx, Type: types.TypeFloat64, VecLen: length,
	})
	return types.TypeFloat64, length, nil
}

// emitReduce compiles sum/mean/min/max/any/all over a single argument by
// wrapping the argument's own token sequence in LoopStart/Reducing/LoopEnd
// control tokens (spec.md §4.G.5), with every variable reference inside the
// body marked UseLoopIndex so the evaluator indexes it by the current
// iteration instead of reading its whole value. Only one loop nesting level
// is supported: a reduction whose argument itself contains a reduction is
// rejected at compile time.
func (c *compiler) emitReduce(e parser.Call) (types.ValueType, int, error) {
	if len(e.Args) != 1 {
		return 0, 0, compileErr(e.Name + " takes exactly one argument")
	}
	loopLen := c.loopLenOf(e.Args[0])
	if loopLen <= 1 {
		// degenerate: reducing a scalar is the scalar itself, but we still
		// emit the explicit control tokens so the evaluator's loop handling
		// is uniform.
		loopLen = 1
	}

	startIdx := len(c.tokens)
	c.tokens = append(c.tokens, types.Token{Kind: types.TokLoopStart, LoopLen: loopLen})

	bodyStart := len(c.tokens)
	typ, _, err := c.emitIndexed(e.Args[0])
	if err != nil {
		return 0, 0, err
	}
	for _, tok := range c.tokens[bodyStart:] {
		if tok.Kind == types.TokLoopStart {
			return 0, 0, compileErr("nested reductions are not supported")
		}
	}
	bodyLen := len(c.tokens) - bodyStart
	c.tokens[startIdx].BodyLen = bodyLen

	c.tokens = append(c.tokens, types.Token{Kind: types.TokReducing, FnName: e.Name, Type: typ, VecLen: 1})
	c.tokens = append(c.tokens, types.Token{Kind: types.TokLoopEnd})
	return typ, 1, nil
}

// loopLenOf finds the vector length driving a reduction's iteration count:
// the first multi-element variable reference reachable in expr, per the
// Context's known signal shapes.
func (c *compiler) loopLenOf(expr parser.Expr) int {
	switch n := expr.(type) {
	case parser.VarRef:
		return c.varLen(n.Name)
	case parser.Unary:
		return c.loopLenOf(n.X)
	case parser.Binary:
		if l := c.loopLenOf(n.L); l > 1 {
			return l
		}
		return c.loopLenOf(n.R)
	case parser.Logical:
		if l := c.loopLenOf(n.L); l > 1 {
			return l
		}
		return c.loopLenOf(n.R)
	case parser.Call:
		for _, a := range n.Args {
			if l := c.loopLenOf(a); l > 1 {
				return l
			}
		}
		return 1
	default:
		return 1
	}
}

func (c *compiler) varLen(name string) int {
	switch {
	case name == "y":
		return c.ctx.DestLen
	case name == "x" || (len(name) > 1 && name[0] == 'x' && isDigits(name[1:])):
		idx := 0
		if name != "x" {
			idx = sourceSuffix(name, "x")
		}
		if idx < len(c.ctx.SourceLen) {
			return c.ctx.SourceLen[idx]
		}
	}
	return 1
}

// emitIndexed is emit with reduction-loop context: every input/output/user
// variable token emitted anywhere in expr's token sequence - not just the
// expression's own final token - is marked UseLoopIndex so the evaluator
// reads one element per iteration instead of folding the same whole vector
// on every pass. A compound argument like x*2 or abs(x) emits several
// tokens (the var reference plus whatever combines it), and only the var
// reference itself is ever subject to per-element indexing.
func (c *compiler) emitIndexed(expr parser.Expr) (types.ValueType, int, error) {
	start := len(c.tokens)
	typ, length, err := c.emit(expr)
	if err != nil {
		return 0, 0, err
	}
	if length > 1 {
		for i := start; i < len(c.tokens); i++ {
			switch c.tokens[i].Kind {
			case types.TokInputVar, types.TokOutputVar, types.TokUserVar:
				c.tokens[i].UseLoopIndex = true
			}
		}
	}
	return typ, 1, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
