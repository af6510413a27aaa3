// Package eval implements Component H: executing a compiled types.Program
// as a stack machine over per-source history ring buffers, user variables,
// and wall-clock timestamps (spec.md §4.H).
package eval

import (
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// Evaluator holds the running state for one map instance: history of every
// source and the destination, the user-variable table (including ema/
// schmitt hidden state), and the last-seen instance counts.
type Evaluator struct {
	prog        *types.Program
	srcRings    []*ring
	destRing    *ring
	vars        [][]float64
	instCount   []int
	loopIndex   int
	destDefault map[int]float64 // y{-k}=literal fallback, keyed by history index
}

// NewEvaluator allocates ring buffers sized to the program's inferred
// history depth and applies any y{-k}=literal / var{-k}=literal
// initializers recorded at compile time.
func NewEvaluator(prog *types.Program) *Evaluator {
	e := &Evaluator{
		prog:        prog,
		srcRings:    make([]*ring, prog.NumSources),
		destRing:    newRing(prog.DestHist + 1),
		instCount:   make([]int, prog.NumSources),
		loopIndex:   -1,
		destDefault: make(map[int]float64),
	}
	for i := range e.srcRings {
		e.srcRings[i] = newRing(prog.SourceHist[i] + 1)
	}
	e.vars = make([][]float64, len(prog.UserVars))
	for i, uv := range prog.UserVars {
		e.vars[i] = make([]float64, uv.Length)
	}
	for key, v := range prog.HistoryInit {
		name, idx := splitHistKey(key)
		if name == "y" {
			e.destDefault[idx] = v
			continue
		}
		for i, uv := range prog.UserVars {
			if uv.Name == name {
				for j := range e.vars[i] {
					e.vars[i][j] = v
				}
			}
		}
	}
	return e
}

// splitHistKey parses a "name:-k" HistoryInit key back into its name and
// negative index.
func splitHistKey(key string) (string, int) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			idx := 0
			neg := false
			for _, c := range key[i+1:] {
				if c == '-' {
					neg = true
					continue
				}
				idx = idx*10 + int(c-'0')
			}
			if neg {
				idx = -idx
			}
			return key[:i], idx
		}
	}
	return key, 0
}

// UpdateSource pushes a new sample for source idx, making it visible to
// subsequent Eval calls (including as history for future ticks).
func (e *Evaluator) UpdateSource(idx int, value []float64, t time.Time) {
	e.srcRings[idx].push(append([]float64(nil), value...), t)
}

// SetInstanceCount records the current active-instance count for n_x.
func (e *Evaluator) SetInstanceCount(idx int, n int) {
	e.instCount[idx] = n
}

// Eval runs the program in response to a new sample on the triggering
// source (spec.md §5's "the arriving source's update clocks the map"),
// returning the destination vector and its timestamp. A history reference
// that reaches before any data was pushed is a recoverable Computation
// error: the caller should drop the sample and write nothing.
func (e *Evaluator) Eval(triggerIdx int, t time.Time) (dest []float64, destTime time.Time, muted bool, err error) {
	var stack [][]float64
	push := func(v []float64) { stack = append(stack, v) }
	pop := func() []float64 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	var tyOverride time.Time
	haveTy := false

	pc := 0
	toks := e.prog.Tokens
	for pc < len(toks) {
		tok := toks[pc]
		switch tok.Kind {
		case types.TokLiteral:
			push([]float64{tok.Scalar})

		case types.TokVecLiteral:
			push(append([]float64(nil), tok.Vector...))

		case types.TokInputVar:
			v, _, ok := e.srcRings[tok.SourceIndex].at(tok.HistoryIndex)
			if !ok {
				return nil, time.Time{}, false, historyErr()
			}
			push(e.index(v, tok))

		case types.TokOutputVar:
			v, ok := e.destValue(tok.HistoryIndex)
			if !ok {
				return nil, time.Time{}, false, historyErr()
			}
			push(e.index(v, tok))

		case types.TokUserVar:
			push(e.index(e.vars[tok.VarIndex], tok))

		case types.TokTimeVar:
			if tok.SourceIndex >= 0 {
				_, st, ok := e.srcRings[tok.SourceIndex].at(tok.HistoryIndex)
				if !ok {
					return nil, time.Time{}, false, historyErr()
				}
				push([]float64{float64(st.UnixNano()) / 1e9})
			} else if tok.HistoryIndex == 0 {
				_, dt, ok := e.destRing.latest()
				if !ok {
					dt = t
				}
				push([]float64{float64(dt.UnixNano()) / 1e9})
			} else {
				// the current output is not pushed yet, so t_y{-1} is the
				// most recent entry in the ring
				_, dt, ok := e.destRing.at(tok.HistoryIndex + 1)
				if !ok {
					return nil, time.Time{}, false, historyErr()
				}
				push([]float64{float64(dt.UnixNano()) / 1e9})
			}

		case types.TokCountVar:
			push([]float64{float64(e.instCount[tok.SourceIndex])})

		case types.TokSlice:
			v := pop()
			from, to := tok.SliceFrom, tok.SliceTo
			if to > len(v) {
				to = len(v)
			}
			if from > to {
				from = to
			}
			push(append([]float64(nil), v[from:to]...))

		case types.TokNegate:
			v := pop()
			out := make([]float64, len(v))
			for i := range v {
				out[i] = -v[i]
			}
			push(out)

		case types.TokNot:
			v := pop()
			out := make([]float64, len(v))
			for i := range v {
				out[i] = boolToF(v[i] == 0)
			}
			push(out)

		case types.TokBinOp:
			r := pop()
			l := pop()
			push(broadcastOp(l, r, func(a, b float64) float64 { return applyBinOp(tok.Op, a, b) }))

		case types.TokCompareOp:
			r := pop()
			l := pop()
			push(broadcastOp(l, r, func(a, b float64) float64 { return boolToF(applyCompare(tok.Op, a, b)) }))

		case types.TokLogicalOp:
			r := pop()
			l := pop()
			push(broadcastOp(l, r, func(a, b float64) float64 {
				if tok.Op == types.OpAnd {
					return boolToF(a != 0 && b != 0)
				}
				return boolToF(a != 0 || b != 0)
			}))

		case types.TokTernary:
			if tok.Arity == 2 {
				elseV := pop()
				cond := pop()
				if cond[0] != 0 {
					push(cond)
				} else {
					push(elseV)
				}
			} else {
				elseV := pop()
				thenV := pop()
				cond := pop()
				if cond[0] != 0 {
					push(thenV)
				} else {
					push(elseV)
				}
			}

		case types.TokCall:
			args := make([][]float64, tok.Arity)
			for i := tok.Arity - 1; i >= 0; i-- {
				args[i] = pop()
			}
			v, err := callScalarFn(tok.FnName, tok.FnKind, args)
			if err != nil {
				return nil, time.Time{}, false, err
			}
			push(v)

		case types.TokReduce:
			args := make([][]float64, tok.Arity)
			for i := tok.Arity - 1; i >= 0; i-- {
				args[i] = pop()
			}
			v := callStateful(tok.FnName, args, e.vars[tok.VarIndex])
			push(v)

		case types.TokLoopStart:
			reducing := toks[pc+1+tok.BodyLen]
			acc, accErr := e.runLoop(tok, toks[pc+1:pc+1+tok.BodyLen], reducing.FnName)
			if accErr != nil {
				return nil, time.Time{}, false, accErr
			}
			push([]float64{acc})
			pc += 1 + tok.BodyLen + 2
			continue

		case types.TokAssign:
			v := pop()
			if tok.AssignTo == "instance" || tok.AssignTo == "mute" {
				if tok.AssignTo == "mute" {
					muted = v[0] != 0
				}
			} else if tok.AssignTo == "y" {
				if dest == nil {
					dest = make([]float64, e.prog.DestLen)
				}
				off := tok.AssignOffset
				for i, x := range v {
					if off+i < len(dest) {
						dest[off+i] = x
					}
				}
			} else if tok.AssignTo == "t_y" {
				tyOverride = time.Unix(0, int64(v[0]*1e9))
				haveTy = true
			} else {
				for i, uv := range e.prog.UserVars {
					if uv.Name == tok.AssignTo {
						copy(e.vars[i], v)
					}
				}
			}
		}
		pc++
	}

	if dest != nil {
		destTime = t
		if haveTy {
			destTime = tyOverride
		}
		e.destRing.push(dest, destTime)
	}
	return dest, destTime, muted, nil
}

// runLoop executes body once per iteration with loopIndex set, folding each
// iteration's single resulting scalar into an accumulator per fnName. Only
// single-level loop nesting is supported: the body itself must not contain
// another TokLoopStart.
func (e *Evaluator) runLoop(start types.Token, body []types.Token, fnName string) (float64, error) {
	var acc float64
	for i := 0; i < start.LoopLen; i++ {
		e.loopIndex = i
		var stack [][]float64
		for _, tok := range body {
			switch tok.Kind {
			case types.TokLiteral:
				stack = append(stack, []float64{tok.Scalar})
			case types.TokInputVar:
				v, _, ok := e.srcRings[tok.SourceIndex].at(tok.HistoryIndex)
				if !ok {
					e.loopIndex = -1
					return 0, historyErr()
				}
				stack = append(stack, e.index(v, tok))
			case types.TokOutputVar:
				v, ok := e.destValue(tok.HistoryIndex)
				if !ok {
					e.loopIndex = -1
					return 0, historyErr()
				}
				stack = append(stack, e.index(v, tok))
			case types.TokUserVar:
				stack = append(stack, e.index(e.vars[tok.VarIndex], tok))
			case types.TokTimeVar:
				if tok.SourceIndex >= 0 {
					_, st, ok := e.srcRings[tok.SourceIndex].at(tok.HistoryIndex)
					if !ok {
						e.loopIndex = -1
						return 0, historyErr()
					}
					stack = append(stack, []float64{float64(st.UnixNano()) / 1e9})
				} else {
					_, dt, ok := e.destRing.latest()
					if !ok {
						dt = time.Now()
					}
					stack = append(stack, []float64{float64(dt.UnixNano()) / 1e9})
				}
			case types.TokCountVar:
				stack = append(stack, []float64{float64(e.instCount[tok.SourceIndex])})
			case types.TokNegate:
				v := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				out := make([]float64, len(v))
				for j := range v {
					out[j] = -v[j]
				}
				stack = append(stack, out)
			case types.TokNot:
				v := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				out := make([]float64, len(v))
				for j := range v {
					out[j] = boolToF(v[j] == 0)
				}
				stack = append(stack, out)
			case types.TokBinOp:
				r := stack[len(stack)-1]
				l := stack[len(stack)-2]
				stack = stack[:len(stack)-2]
				stack = append(stack, broadcastOp(l, r, func(a, b float64) float64 { return applyBinOp(tok.Op, a, b) }))
			case types.TokCompareOp:
				r := stack[len(stack)-1]
				l := stack[len(stack)-2]
				stack = stack[:len(stack)-2]
				stack = append(stack, broadcastOp(l, r, func(a, b float64) float64 { return boolToF(applyCompare(tok.Op, a, b)) }))
			case types.TokLogicalOp:
				r := stack[len(stack)-1]
				l := stack[len(stack)-2]
				stack = stack[:len(stack)-2]
				stack = append(stack, broadcastOp(l, r, func(a, b float64) float64 {
					if tok.Op == types.OpAnd {
						return boolToF(a != 0 && b != 0)
					}
					return boolToF(a != 0 || b != 0)
				}))
			case types.TokTernary:
				if tok.Arity == 2 {
					elseV := stack[len(stack)-1]
					cond := stack[len(stack)-2]
					stack = stack[:len(stack)-2]
					if cond[0] != 0 {
						stack = append(stack, cond)
					} else {
						stack = append(stack, elseV)
					}
				} else {
					elseV := stack[len(stack)-1]
					thenV := stack[len(stack)-2]
					cond := stack[len(stack)-3]
					stack = stack[:len(stack)-3]
					if cond[0] != 0 {
						stack = append(stack, thenV)
					} else {
						stack = append(stack, elseV)
					}
				}
			case types.TokCall:
				args := make([][]float64, tok.Arity)
				for j := tok.Arity - 1; j >= 0; j-- {
					args[j] = stack[len(stack)-1]
					stack = stack[:len(stack)-1]
				}
				v, callErr := callScalarFn(tok.FnName, tok.FnKind, args)
				if callErr != nil {
					e.loopIndex = -1
					return 0, callErr
				}
				stack = append(stack, v)
			}
		}
		v := stack[len(stack)-1][0]
		switch {
		case i == 0 && (fnName == "any" || fnName == "all"):
			acc = boolToF(v != 0)
		case i == 0:
			acc = v
		case fnName == "min":
			if v < acc {
				acc = v
			}
		case fnName == "max":
			if v > acc {
				acc = v
			}
		case fnName == "any":
			acc = boolToF(acc != 0 || v != 0)
		case fnName == "all":
			acc = boolToF(acc != 0 && v != 0)
		default: // sum, mean
			acc += v
		}
	}
	if fnName == "mean" && start.LoopLen > 0 {
		acc /= float64(start.LoopLen)
	}
	e.loopIndex = -1
	return acc, nil
}

// destValue resolves a y{-k} reference: real history first, falling back to
// a compiled y{-k}=literal initializer so the very first tick after staging
// a map can already reference its own prior output (spec.md §4.F).
func (e *Evaluator) destValue(histIdx int) ([]float64, bool) {
	// the ring holds only past outputs while an evaluation runs, so y{-1}
	// is its most recent entry
	k := histIdx
	if k < 0 {
		k++
	}
	if v, _, ok := e.destRing.at(k); ok {
		return v, true
	}
	if def, ok := e.destDefault[histIdx]; ok {
		vec := make([]float64, e.prog.DestLen)
		for i := range vec {
			vec[i] = def
		}
		return vec, true
	}
	return nil, false
}

// index narrows a pushed vector to its current-loop-index element when the
// token was compiled inside a reduction body.
func (e *Evaluator) index(v []float64, tok types.Token) []float64 {
	if tok.UseLoopIndex && e.loopIndex >= 0 {
		idx := e.loopIndex
		if idx >= len(v) {
			idx = len(v) - 1
		}
		return []float64{v[idx]}
	}
	return append([]float64(nil), v...)
}

func historyErr() error {
	return types.NewError(types.KindComputation, "eval", errHistory)
}

var errHistory = historyErrType{}

type historyErrType struct{}

func (historyErrType) Error() string { return "history reference before available data" }

func boolToF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func broadcastOp(l, r []float64, f func(a, b float64) float64) []float64 {
	n := len(l)
	if len(r) > n {
		n = len(r)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		a := l[i%len(l)]
		b := r[i%len(r)]
		out[i] = f(a, b)
	}
	return out
}

func applyBinOp(op types.BinOp, a, b float64) float64 {
	switch op {
	case types.OpAdd:
		return a + b
	case types.OpSub:
		return a - b
	case types.OpMul:
		return a * b
	case types.OpDiv:
		if b == 0 {
			return 0
		}
		return a / b
	case types.OpMod:
		if b == 0 {
			return 0
		}
		ai, bi := int64(a), int64(b)
		return float64(ai % bi)
	case types.OpPow:
		return powf(a, b)
	default:
		return 0
	}
}

func applyCompare(op types.BinOp, a, b float64) bool {
	switch op {
	case types.OpLt:
		return a < b
	case types.OpLe:
		return a <= b
	case types.OpGt:
		return a > b
	case types.OpGe:
		return a >= b
	case types.OpEq:
		return a == b
	case types.OpNe:
		return a != b
	default:
		return false
	}
}
