package compile

import "github.com/jabolina/go-sigmap/pkg/sigmap/expr/parser"

// foldConst recursively evaluates pure-literal subtrees and applies the
// multiplicative/additive identities named in spec.md §4.G.4
// ("y=0*sin(x)*200+1.1 compiles to a token count bounded by the constant
// alone"), dropping subtrees a literal-zero multiply makes unreachable even
// when they contain calls.
func foldConst(e parser.Expr) parser.Expr {
	switch n := e.(type) {
	case parser.Unary:
		x := foldConst(n.X)
		if lit, ok := x.(parser.Literal); ok {
			switch n.Op {
			case "-":
				return parser.Literal{Value: -lit.Value, IsInt: lit.IsInt, Double: lit.Double}
			case "!":
				v := 0.0
				if lit.Value == 0 {
					v = 1
				}
				return parser.Literal{Value: v, IsInt: true}
			}
		}
		return parser.Unary{Op: n.Op, X: x}

	case parser.Binary:
		l := foldConst(n.L)
		r := foldConst(n.R)
		if reduced, ok := applyIdentity(n.Op, l, r); ok {
			return reduced
		}
		llit, lok := l.(parser.Literal)
		rlit, rok := r.(parser.Literal)
		if lok && rok {
			if v, ok := evalBinary(n.Op, llit.Value, rlit.Value); ok {
				return parser.Literal{Value: v, IsInt: llit.IsInt && rlit.IsInt, Double: llit.Double || rlit.Double}
			}
		}
		return parser.Binary{Op: n.Op, L: l, R: r}

	case parser.Logical:
		return parser.Logical{Op: n.Op, L: foldConst(n.L), R: foldConst(n.R)}

	case parser.Ternary:
		cond := foldConst(n.Cond)
		if lit, ok := cond.(parser.Literal); ok {
			if lit.Value != 0 {
				if n.Then == nil {
					return cond
				}
				return foldConst(n.Then)
			}
			return foldConst(n.Else)
		}
		var then parser.Expr
		if n.Then != nil {
			then = foldConst(n.Then)
		}
		return parser.Ternary{Cond: cond, Then: then, Else: foldConst(n.Else)}

	case parser.Call:
		args := make([]parser.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = foldConst(a)
		}
		return parser.Call{Name: n.Name, Args: args}

	case parser.Slice:
		return parser.Slice{Base: foldConst(n.Base), From: foldConst(n.From), To: foldConst(n.To)}

	case parser.VecLiteral:
		elems := make([]parser.Expr, len(n.Elems))
		for i, el := range n.Elems {
			elems[i] = foldConst(el)
		}
		return parser.VecLiteral{Elems: elems}

	default:
		return e
	}
}

// applyIdentity implements x*0->0, x*1->x, x+0->x, x-0->x regardless of
// whether the non-literal side folded to a constant.
func applyIdentity(op string, l, r parser.Expr) (parser.Expr, bool) {
	if lit, ok := l.(parser.Literal); ok {
		switch op {
		case "*":
			if lit.Value == 0 {
				return parser.Literal{Value: 0, IsInt: lit.IsInt}, true
			}
			if lit.Value == 1 {
				return r, true
			}
		case "+":
			if lit.Value == 0 {
				return r, true
			}
		}
	}
	if lit, ok := r.(parser.Literal); ok {
		switch op {
		case "*":
			if lit.Value == 0 {
				return parser.Literal{Value: 0, IsInt: lit.IsInt}, true
			}
			if lit.Value == 1 {
				return l, true
			}
		case "+":
			if lit.Value == 0 {
				return l, true
			}
		case "-":
			if lit.Value == 0 {
				return l, true
			}
		}
	}
	return nil, false
}

func evalBinary(op string, l, r float64) (float64, bool) {
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case "<":
		return boolf(l < r), true
	case "<=":
		return boolf(l <= r), true
	case ">":
		return boolf(l > r), true
	case ">=":
		return boolf(l >= r), true
	case "==":
		return boolf(l == r), true
	case "!=":
		return boolf(l != r), true
	default:
		return 0, false
	}
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
