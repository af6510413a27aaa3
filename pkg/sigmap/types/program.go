package types

// TokKind enumerates the stack-bytecode token kinds the compiler emits and
// the evaluator switches on. The taxonomy is a trimmed, Go-idiomatic
// rendition of original_source/src/expression_token.h's expr_tok_type: one
// flat enum per distinguishable runtime behavior, no bitmask flags.
type TokKind int

const (
	TokLiteral TokKind = iota
	TokVecLiteral
	TokInputVar  // x, x0, x1, ...
	TokOutputVar // y
	TokUserVar   // named user variable
	TokTimeVar   // t_x / t_y
	TokCountVar  // n_x, count of active instances
	TokNegate
	TokNot
	TokBinOp
	TokCompareOp
	TokLogicalOp
	TokTernary
	TokCast
	TokCall     // scalar/vector-elementwise function
	TokReduce   // stateful filter function: ema, schmitt
	TokSlice    // vector slice x[i:j]
	TokHistory  // history index x{-k}
	TokLoopStart
	TokReducing
	TokLoopEnd
	TokAssign
	TokHistoryInit // y{-k}=literal
	TokEnd
)

// BinOp enumerates the arithmetic/comparison/logical operators.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd
	OpOr
)

// FnKind distinguishes how a named function spreads over vector operands,
// generalizing original_source's TOK_FN/TOK_VFN/TOK_VFN_DOT/TOK_RFN split
// (SPEC_FULL.md §12.3).
type FnKind int

const (
	FnScalar FnKind = iota // applies per-element, arity fixed (e.g. sin, linear)
	FnVector                // elementwise across two equal-length vectors (e.g. min(a,b))
	FnReduce                // collapses a vector/history run to a scalar (sum, mean, ema, schmitt)
)

// Token is one instruction in the compiled stack program. Only the fields
// relevant to Kind are meaningful, mirroring the teacher's convention of
// plain structs over discriminated unions - Go has no tagged union, so the
// flat-struct-with-irrelevant-zero-fields approach is the idiomatic choice
// (a variant type played out via separate structs would fragment the
// stack-machine dispatch the evaluator relies on).
type Token struct {
	Kind TokKind

	// Literal/VecLiteral
	Type   ValueType
	VecLen int
	Scalar float64
	Vector []float64

	// InputVar / OutputVar
	SourceIndex int // which source (0-based) for multi-source expressions

	// UserVar
	VarName  string
	VarIndex int

	// History
	HistoryIndex int // negative offset, e.g. -1 for x{-1}

	// Slice
	SliceFrom, SliceTo int

	// BinOp/CompareOp/LogicalOp
	Op BinOp

	// Cast
	CastTo ValueType

	// Call/Reduce
	FnName string
	FnKind FnKind
	Arity  int

	// Assign
	AssignTo        string // "y" or a user variable name
	AssignOffset    int    // destination vector slice offset
	AssignLen       int    // destination vector slice length (0 = whole vector)

	// Loop control (LoopStart/Reducing/LoopEnd): LoopStart's BodyLen is the
	// number of tokens between it and its matching Reducing token, run once
	// per iteration; LoopLen is the iteration count. A var token's
	// UseLoopIndex marks it as reading the current loop index rather than
	// its whole value.
	LoopLen      int
	BodyLen      int
	UseLoopIndex bool
}

// UserVarDecl describes one slot in a Program's user-variable table.
type UserVarDecl struct {
	Name   string
	Length int
	Type   ValueType
	Hidden bool // true for ema/schmitt's implicit state variables
}

// Program is the compiled output of Component G: a flat token sequence, the
// per-source history depth it requires, the destination history depth, and
// the user-variable table (spec.md §3's "Expression program").
type Program struct {
	Source      string // original expression text, kept for diagnostics
	Tokens      []Token
	NumSources  int
	SourceLen   []int       // vector length required of each source
	SourceType  []ValueType // type required of each source
	SourceHist  []int       // deepest negative history index referenced, per source
	DestLen     int
	DestType    ValueType
	DestHist    int
	UserVars    []UserVarDecl
	HistoryInit map[string]float64 // y{-k}=literal initializers, keyed "name:-k"

	// InstancePredicate/MutePredicate name a user variable (if any) whose
	// value gates instance origination / mutes a tick, per spec.md §3's
	// "two optional control variables".
	InstancePredicate string
	MutePredicate     string
}

// MaxHistoryDepth bounds how far back {-k} may reach, per spec.md §4.G.3.
const MaxHistoryDepth = 64

// LegacyHistoryDepth is the historical single-source DSL's bound, kept only
// as a documented reference value (SPEC_FULL.md §13) - the compiler does not
// special-case it.
const LegacyHistoryDepth = 5
