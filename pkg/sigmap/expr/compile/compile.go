// Package compile implements Component G: turning a parsed AST into the flat
// stack-bytecode types.Program the evaluator executes. Responsibilities
// follow spec.md §4.G: type promotion, vector-length broadcast, history-depth
// inference, constant folding/strength reduction, reduction loop tokens, and
// output-slice store tokens.
package compile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jabolina/go-sigmap/pkg/sigmap/expr/parser"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// Context describes the signals a program will run against: how many
// sources, each one's current type and vector length, and the destination's
// type and length. The compiler validates against this and the resulting
// Program is only valid until the referenced signals' schema changes
// (spec.md §3's Map invariant).
type Context struct {
	SourceType []types.ValueType
	SourceLen  []int
	DestType   types.ValueType
	DestLen    int
}

var reduceNames = map[string]bool{"sum": true, "mean": true, "min": true, "max": true, "any": true, "all": true}
var statefulNames = map[string]bool{"ema": true, "schmitt": true}
var scalarFnArity = map[string]int{
	"sin": 1, "cos": 1, "tan": 1, "sqrt": 1, "abs": 1, "exp": 1, "log": 1,
	"floor": 1, "ceil": 1, "round": 1, "linear": 5,
}

type compiler struct {
	ctx      Context
	tokens   []types.Token
	userVars []types.UserVarDecl
	varIndex map[string]int
	srcHist  []int
	destHist int
	histInit map[string]float64
	instPred string
	mutePred string
}

// Compile type-checks and lowers a parsed *parser.Program into a
// *types.Program for the given signal Context.
func Compile(src string, ast *parser.Program, ctx Context) (*types.Program, error) {
	c := &compiler{
		ctx:      ctx,
		varIndex: make(map[string]int),
		srcHist:  make([]int, len(ctx.SourceType)),
		histInit: make(map[string]float64),
	}

	for _, stmt := range ast.Statements {
		folded := foldConst(stmt.Value)
		if stmt.Target.HasHistoryIdx {
			lit, ok := folded.(parser.Literal)
			if !ok {
				return nil, compileErr("history-init must be a literal")
			}
			key := fmt.Sprintf("%s:%d", stmt.Target.Name, stmt.Target.HistoryIndex)
			c.histInit[key] = lit.Value
			if -stmt.Target.HistoryIndex > c.destHist && stmt.Target.Name == "y" {
				c.destHist = -stmt.Target.HistoryIndex
			}
			continue
		}

		rType, rLen, err := c.emit(folded)
		if err != nil {
			return nil, err
		}

		assignTok := types.Token{Kind: types.TokAssign, AssignTo: stmt.Target.Name}
		if stmt.Target.HasSlice {
			assignTok.AssignOffset = stmt.Target.From
			assignTok.AssignLen = stmt.Target.To - stmt.Target.From
			if assignTok.AssignLen <= 0 {
				return nil, compileErr("invalid destination slice bounds")
			}
		} else {
			assignTok.AssignLen = rLen
		}

		switch stmt.Target.Name {
		case "instance":
			c.instPred = "instance"
		case "mute":
			c.mutePred = "mute"
		}
		_ = rType
		c.tokens = append(c.tokens, assignTok)
	}

	prog := &types.Program{
		Source:            src,
		Tokens:            c.tokens,
		NumSources:        len(ctx.SourceType),
		SourceLen:         append([]int(nil), ctx.SourceLen...),
		SourceType:        append([]types.ValueType(nil), ctx.SourceType...),
		SourceHist:        c.srcHist,
		DestLen:           ctx.DestLen,
		DestType:          ctx.DestType,
		DestHist:          c.destHist,
		UserVars:          c.userVars,
		HistoryInit:       c.histInit,
		InstancePredicate: c.instPred,
		MutePredicate:     c.mutePred,
	}
	for _, v := range c.srcHist {
		if v > types.MaxHistoryDepth {
			return nil, compileErr("history depth exceeds maximum")
		}
	}
	return prog, nil
}

func compileErr(msg string) error {
	return types.NewError(types.KindCompileError, "compile", errors.New(msg))
}

// emit lowers expr into postorder (RPN) tokens appended to c.tokens,
// returning the static type/vector-length of its result.
func (c *compiler) emit(expr parser.Expr) (types.ValueType, int, error) {
	switch e := expr.(type) {
	case parser.Literal:
		typ := types.TypeFloat32
		if e.IsInt {
			typ = types.TypeInt32
		} else if e.Double {
			typ = types.TypeFloat64
		}
		c.tokens = append(c.tokens, types.Token{Kind: types.TokLiteral, Type: typ, Scalar: e.Value, VecLen: 1})
		return typ, 1, nil

	case parser.VecLiteral:
		vals := make([]float64, 0, len(e.Elems))
		for _, el := range e.Elems {
			lit, ok := foldConst(el).(parser.Literal)
			if !ok {
				return 0, 0, compileErr("vector literal elements must be constant")
			}
			vals = append(vals, lit.Value)
		}
		c.tokens = append(c.tokens, types.Token{Kind: types.TokVecLiteral, Type: types.TypeFloat64, Vector: vals, VecLen: len(vals)})
		return types.TypeFloat64, len(vals), nil

	case parser.VarRef:
		return c.emitVar(e.Name, 0)

	case parser.History:
		base, ok := e.Base.(parser.VarRef)
		if !ok {
			return 0, 0, compileErr("history index only applies to a bare variable")
		}
		if -e.Index > types.MaxHistoryDepth {
			return 0, 0, compileErr("history index exceeds maximum depth")
		}
		return c.emitVar(base.Name, e.Index)

	case parser.Slice:
		base, ok := e.Base.(parser.VarRef)
		if !ok {
			return 0, 0, compileErr("slice only applies to a bare variable")
		}
		fromLit, ok1 := foldConst(e.From).(parser.Literal)
		toLit, ok2 := foldConst(e.To).(parser.Literal)
		if !ok1 || !ok2 {
			return 0, 0, compileErr("slice bounds must be constant")
		}
		from, to := int(fromLit.Value), int(toLit.Value)
		typ, length, err := c.emitVar(base.Name, 0)
		if err != nil {
			return 0, 0, err
		}
		if from < 0 || to > length || from >= to {
			return 0, 0, compileErr("slice out of bounds")
		}
		c.tokens = append(c.tokens, types.Token{Kind: types.TokSlice, SliceFrom: from, SliceTo: to, VecLen: to - from, Type: typ})
		return typ, to - from, nil

	case parser.Unary:
		typ, length, err := c.emit(e.X)
		if err != nil {
			return 0, 0, err
		}
		kind := types.TokNegate
		if e.Op == "!" {
			kind = types.TokNot
		}
		c.tokens = append(c.tokens, types.Token{Kind: kind, Type: typ, VecLen: length})
		return typ, length, nil

	case parser.Binary:
		return c.emitBinary(e)

	case parser.Logical:
		lt, ll, err := c.emit(e.L)
		if err != nil {
			return 0, 0, err
		}
		_, _, err = c.emit(e.R)
		if err != nil {
			return 0, 0, err
		}
		op := types.OpAnd
		if e.Op == "||" {
			op = types.OpOr
		}
		c.tokens = append(c.tokens, types.Token{Kind: types.TokLogicalOp, Op: op, Type: types.TypeInt32, VecLen: ll})
		_ = lt
		return types.TypeInt32, ll, nil

	case parser.Ternary:
		if e.Then == nil {
			ct, cl, err := c.emit(e.Cond)
			if err != nil {
				return 0, 0, err
			}
			et, el, err := c.emit(e.Else)
			if err != nil {
				return 0, 0, err
			}
			typ := widest(ct, et)
			length := broadcastLen(cl, el)
			c.tokens = append(c.tokens, types.Token{Kind: types.TokTernary, Arity: 2, Type: typ, VecLen: length})
			return typ, length, nil
		}
		_, cl, err := c.emit(e.Cond)
		if err != nil {
			return 0, 0, err
		}
		tt, tl, err := c.emit(e.Then)
		if err != nil {
			return 0, 0, err
		}
		et, el, err := c.emit(e.Else)
		if err != nil {
			return 0, 0, err
		}
		typ := widest(tt, et)
		length := broadcastLen(broadcastLen(cl, tl), el)
		c.tokens = append(c.tokens, types.Token{Kind: types.TokTernary, Arity: 3, Type: typ, VecLen: length})
		return typ, length, nil

	case parser.Call:
		return c.emitCall(e)

	default:
		return 0, 0, compileErr("unsupported expression node")
	}
}

func (c *compiler) emitBinary(e parser.Binary) (types.ValueType, int, error) {
	// strength reduction: fold literal-zero/one identities even when the
	// other operand is not itself constant (spec.md §4.G.4).
	if lit, ok := foldConst(e.L).(parser.Literal); ok {
		if reduced, done := identityFold(e.Op, lit, e.R, true); done {
			return c.emit(reduced)
		}
	}
	if lit, ok := foldConst(e.R).(parser.Literal); ok {
		if reduced, done := identityFold(e.Op, lit, e.L, false); done {
			return c.emit(reduced)
		}
	}

	lt, ll, err := c.emit(e.L)
	if err != nil {
		return 0, 0, err
	}
	rt, rl, err := c.emit(e.R)
	if err != nil {
		return 0, 0, err
	}
	if ll != rl && ll != 1 && rl != 1 {
		return 0, 0, compileErr("vector lengths not broadcast-compatible: " + strconv.Itoa(ll) + " vs " + strconv.Itoa(rl))
	}
	length := broadcastLen(ll, rl)
	typ := widest(lt, rt)

	isCompare := false
	var op types.BinOp
	switch e.Op {
	case "+":
		op = types.OpAdd
	case "-":
		op = types.OpSub
	case "*":
		op = types.OpMul
	case "/":
		op = types.OpDiv
		if lit, ok := foldConst(e.R).(parser.Literal); ok && lit.IsInt && lit.Value == 0 && (lt == types.TypeInt32 || typ == types.TypeInt32) {
			return 0, 0, compileErr("integer division by literal zero")
		}
	case "%":
		op = types.OpMod
	case "^":
		op = types.OpPow
		typ = types.TypeFloat64
	case "<":
		op, isCompare = types.OpLt, true
	case "<=":
		op, isCompare = types.OpLe, true
	case ">":
		op, isCompare = types.OpGt, true
	case ">=":
		op, isCompare = types.OpGe, true
	case "==":
		op, isCompare = types.OpEq, true
	case "!=":
		op, isCompare = types.OpNe, true
	default:
		return 0, 0, compileErr("unknown operator " + e.Op)
	}

	kind := types.TokBinOp
	if isCompare {
		kind = types.TokCompareOp
		typ = types.TypeInt32
	}
	c.tokens = append(c.tokens, types.Token{Kind: kind, Op: op, Type: typ, VecLen: length})
	return typ, length, nil
}

// identityFold implements x*0->0, x*1->x, x+0->x (spec.md §4.G.4) when one
// side (lit) is a constant and the other (other) need not be. litIsLeft
// tracks operand order for non-commutative operators.
func identityFold(op string, lit parser.Literal, other parser.Expr, litIsLeft bool) (parser.Expr, bool) {
	switch op {
	case "*":
		if lit.Value == 0 {
			return parser.Literal{Value: 0, IsInt: lit.IsInt}, true
		}
		if lit.Value == 1 {
			return other, true
		}
	case "+":
		if lit.Value == 0 {
			return other, true
		}
	case "-":
		if !litIsLeft && lit.Value == 0 {
			return other, true
		}
	}
	return nil, false
}

func widest(a, b types.ValueType) types.ValueType {
	if a.Wider(b) {
		return a
	}
	return b
}

func broadcastLen(a, b int) int {
	if a == 1 {
		return b
	}
	return a
}

// emitVar resolves a bare variable name to its token, recording history
// depth against the referenced source/destination and declaring unknown
// identifiers as user variables (spec.md §4.F/§4.G.3).
func (c *compiler) emitVar(name string, histIdx int) (types.ValueType, int, error) {
	switch {
	case name == "y":
		if -histIdx > c.destHist {
			c.destHist = -histIdx
		}
		c.tokens = append(c.tokens, types.Token{Kind: types.TokOutputVar, Type: c.ctx.DestType, VecLen: c.ctx.DestLen, HistoryIndex: histIdx})
		return c.ctx.DestType, c.ctx.DestLen, nil

	case name == "t_x" || strings.HasPrefix(name, "t_x"):
		idx := sourceSuffix(name, "t_x")
		if idx >= len(c.ctx.SourceType) {
			return 0, 0, compileErr("unknown source reference " + name)
		}
		c.tokens = append(c.tokens, types.Token{Kind: types.TokTimeVar, SourceIndex: idx, Type: types.TypeFloat64, VecLen: 1, HistoryIndex: histIdx})
		return types.TypeFloat64, 1, nil

	case name == "t_y":
		c.tokens = append(c.tokens, types.Token{Kind: types.TokTimeVar, SourceIndex: -1, Type: types.TypeFloat64, VecLen: 1, HistoryIndex: histIdx})
		return types.TypeFloat64, 1, nil

	case name == "n_x" || strings.HasPrefix(name, "n_x"):
		idx := sourceSuffix(name, "n_x")
		if idx >= len(c.ctx.SourceType) {
			return 0, 0, compileErr("unknown source reference " + name)
		}
		c.tokens = append(c.tokens, types.Token{Kind: types.TokCountVar, SourceIndex: idx, Type: types.TypeInt32, VecLen: 1})
		return types.TypeInt32, 1, nil

	case name == "x" || (len(name) > 1 && name[0] == 'x' && isDigits(name[1:])):
		idx := 0
		if name != "x" {
			idx, _ = strconv.Atoi(name[1:])
		}
		if idx >= len(c.ctx.SourceType) {
			return 0, 0, compileErr("unknown source reference " + name)
		}
		if -histIdx > c.srcHist[idx] {
			c.srcHist[idx] = -histIdx
		}
		c.tokens = append(c.tokens, types.Token{Kind: types.TokInputVar, SourceIndex: idx, Type: c.ctx.SourceType[idx], VecLen: c.ctx.SourceLen[idx], HistoryIndex: histIdx})
		return c.ctx.SourceType[idx], c.ctx.SourceLen[idx], nil

	default:
		idx, ok := c.varIndex[name]
		if !ok {
			idx = len(c.userVars)
			c.varIndex[name] = idx
			c.userVars = append(c.userVars, types.UserVarDecl{Name: name, Length: 1, Type: types.TypeFloat64})
		}
		c.tokens = append(c.tokens, types.Token{Kind: types.TokUserVar, VarName: name, VarIndex: idx, Type: types.TypeFloat64, VecLen: 1})
		return types.TypeFloat64, 1, nil
	}
}

func sourceSuffix(name, prefix string) int {
	rest := strings.TrimPrefix(name, prefix)
	if rest == "" {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 1 << 30
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// declareHidden allocates a hidden user-variable slot for a stateful
// reduction (ema/schmitt), generalizing the teacher-absent concept of
// "filter memory" directly from spec.md §4.H.
func (c *compiler) declareHidden(prefix string, length int) int {
	name := fmt.Sprintf("__%s_%d", prefix, len(c.userVars))
	idx := len(c.userVars)
	c.userVars = append(c.userVars, types.UserVarDecl{Name: name, Length: length, Type: types.TypeFloat64, Hidden: true})
	c.varIndex[name] = idx
	return idx
}
