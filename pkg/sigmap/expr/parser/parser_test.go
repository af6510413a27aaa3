package parser

import "testing"

func TestParseLinearAssignment(t *testing.T) {
	prog, err := Parse("y=linear(x,0,100,0,1)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	call, ok := prog.Statements[0].Value.(Call)
	if !ok {
		t.Fatalf("expected Call, got %T", prog.Statements[0].Value)
	}
	if call.Name != "linear" || len(call.Args) != 5 {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestParseHistoryChain(t *testing.T) {
	prog, err := Parse("y=x+y{-1}; y{-1}=100")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(prog.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Statements))
	}
	if !prog.Statements[1].Target.HasHistoryIdx || prog.Statements[1].Target.HistoryIndex != -1 {
		t.Fatalf("expected history-init target, got %+v", prog.Statements[1].Target)
	}
	bin, ok := prog.Statements[0].Value.(Binary)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected top-level '+' binary, got %+v", prog.Statements[0].Value)
	}
	if _, ok := bin.R.(History); !ok {
		t.Fatalf("expected History on rhs, got %T", bin.R)
	}
}

func TestParseTernaryShortForm(t *testing.T) {
	prog, err := Parse("y=x?:0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tern, ok := prog.Statements[0].Value.(Ternary)
	if !ok || tern.Then != nil {
		t.Fatalf("expected short-form ternary, got %+v", prog.Statements[0].Value)
	}
}

func TestParseFullTernary(t *testing.T) {
	prog, err := Parse("y=x>0?1:-1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tern, ok := prog.Statements[0].Value.(Ternary)
	if !ok || tern.Then == nil {
		t.Fatalf("expected full ternary, got %+v", prog.Statements[0].Value)
	}
	if _, ok := tern.Cond.(Binary); !ok {
		t.Fatalf("expected comparison condition, got %T", tern.Cond)
	}
}

func TestParseVectorLiteralAndSlice(t *testing.T) {
	prog, err := Parse("y[0:2]=[1,2,3][0:2]")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	target := prog.Statements[0].Target
	if !target.HasSlice || target.From != 0 || target.To != 2 {
		t.Fatalf("unexpected target: %+v", target)
	}
	sl, ok := prog.Statements[0].Value.(Slice)
	if !ok {
		t.Fatalf("expected Slice, got %T", prog.Statements[0].Value)
	}
	if _, ok := sl.Base.(VecLiteral); !ok {
		t.Fatalf("expected VecLiteral base, got %T", sl.Base)
	}
}

func TestParsePrecedence(t *testing.T) {
	prog, err := Parse("y=1+2*3^2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	top, ok := prog.Statements[0].Value.(Binary)
	if !ok || top.Op != "+" {
		t.Fatalf("expected top-level '+', got %+v", prog.Statements[0].Value)
	}
	mul, ok := top.R.(Binary)
	if !ok || mul.Op != "*" {
		t.Fatalf("expected '*' nested under '+', got %+v", top.R)
	}
	if _, ok := mul.R.(Binary); !ok {
		t.Fatalf("expected '^' nested under '*', got %T", mul.R)
	}
}

func TestParseErrorOffset(t *testing.T) {
	_, err := Parse("y=")
	if err == nil {
		t.Fatalf("expected parse error")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Offset != 2 {
		t.Fatalf("offset = %d, want 2", perr.Offset)
	}
}

func TestParsePurity(t *testing.T) {
	src := "y=x+y{-1}*2-linear(x,0,1,0,100)"
	p1, err1 := Parse(src)
	p2, err2 := Parse(src)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if len(p1.Statements) != len(p2.Statements) {
		t.Fatalf("two parses of the same source disagree")
	}
}
