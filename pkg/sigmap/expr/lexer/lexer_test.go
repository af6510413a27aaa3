package lexer

import "testing"

func TestLexBasicAssignment(t *testing.T) {
	toks, err := Lex("y=linear(x,0,100,0,1)")
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	wantKinds := []Kind{Ident, Assign, Ident, LParen, Ident, Comma, IntLit, Comma, IntLit, Comma, IntLit, Comma, IntLit, RParen, EOF}
	if len(toks) != len(wantKinds) {
		t.Fatalf("token count = %d, want %d (%v)", len(toks), len(wantKinds), toks)
	}
	for i, k := range wantKinds {
		if toks[i].Kind != k {
			t.Fatalf("token %d kind = %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestLexHistoryAndMultiStatement(t *testing.T) {
	toks, err := Lex("y=x+y{-1}; y{-1}=100")
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	var semicolons int
	for _, tok := range toks {
		if tok.Kind == Semicolon {
			semicolons++
		}
	}
	if semicolons != 1 {
		t.Fatalf("expected 1 semicolon, got %d", semicolons)
	}
}

func TestLexNumberForms(t *testing.T) {
	cases := map[string]Kind{
		"1":     IntLit,
		"1.5":   FloatLit,
		"1e3":   FloatLit,
		"1.5d":  DoubleLit,
		"2d":    DoubleLit,
	}
	for src, want := range cases {
		toks, err := Lex(src)
		if err != nil {
			t.Fatalf("lex(%q): %v", src, err)
		}
		if toks[0].Kind != want {
			t.Fatalf("lex(%q) kind = %v, want %v", src, toks[0].Kind, want)
		}
	}
}

func TestLexTwoCharOperators(t *testing.T) {
	toks, err := Lex("x<=1&&y>=2||z!=3==4")
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	wantKinds := []Kind{Ident, Le, IntLit, AndAnd, Ident, Ge, IntLit, OrOr, Ident, Ne, IntLit, EqEq, IntLit, EOF}
	if len(toks) != len(wantKinds) {
		t.Fatalf("token count = %d, want %d", len(toks), len(wantKinds))
	}
	for i, k := range wantKinds {
		if toks[i].Kind != k {
			t.Fatalf("token %d = %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestLexInvalidCharacter(t *testing.T) {
	if _, err := Lex("y=x@1"); err == nil {
		t.Fatalf("expected lex error for invalid character")
	}
}

func TestLexOffsetReported(t *testing.T) {
	_, err := Lex("y = x $ 1")
	if err == nil {
		t.Fatalf("expected error")
	}
	lerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if lerr.Offset != 6 {
		t.Fatalf("offset = %d, want 6", lerr.Offset)
	}
}
