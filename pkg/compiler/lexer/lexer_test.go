package lexer

import "testing"

func TestNextTokenBasics(t *testing.T) {
	input := "WAIT 0\nSET x 1.5\n"
	l := New(input)

	expected := []struct {
		typ     TokenType
		literal string
	}{
		{TOKEN_IDENT, "WAIT"},
		{TOKEN_INT, "0"},
		{TOKEN_NEWLINE, "\n"},
		{TOKEN_IDENT, "SET"},
		{TOKEN_IDENT, "x"},
		{TOKEN_FLOAT, "1.5"},
		{TOKEN_NEWLINE, "\n"},
		{TOKEN_EOF, ""},
	}

	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Fatalf("token %d: expected type %s, got %s (%q)", i, exp.typ, tok.Type, tok.Literal)
		}
		if tok.Literal != exp.literal {
			t.Fatalf("token %d: expected literal %q, got %q", i, exp.literal, tok.Literal)
		}
	}
}

func TestKeywordsAreCaseInsensitive(t *testing.T) {
	for _, input := range []string{"WHILE", "while", "While"} {
		if got := LookupIdent(input); got != TOKEN_WHILE {
			t.Errorf("LookupIdent(%q) = %s, want WHILE", input, got)
		}
	}
	if got := LookupIdent("WAIT"); got != TOKEN_IDENT {
		t.Errorf("LookupIdent(WAIT) = %s, want IDENT", got)
	}
}

func TestLabelDefinition(t *testing.T) {
	l := New("main_loop:\nGOTO main_loop\n")
	tok := l.NextToken()
	if tok.Type != TOKEN_LABEL || tok.Literal != "main_loop" {
		t.Fatalf("expected label main_loop, got %s %q", tok.Type, tok.Literal)
	}
}

func TestNegativeNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"-1", TOKEN_INT},
		{"-128", TOKEN_INT},
		{"-1.5", TOKEN_FLOAT},
		{"2.5", TOKEN_FLOAT},
		{"1f", TOKEN_FLOAT},
		{".5", TOKEN_FLOAT},
		{"70000", TOKEN_INT},
	}
	for _, tt := range tests {
		l := New(tt.input)
		tok := l.NextToken()
		if tok.Type != tt.typ || tok.Literal != tt.input {
			t.Errorf("lexing %q: got %s %q", tt.input, tok.Type, tok.Literal)
		}
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	l := New("WAIT 0 // do nothing for a frame\nRETURN\n")
	tokens := l.Tokenize()

	var idents []string
	for _, tok := range tokens {
		if tok.Type == TOKEN_IDENT {
			idents = append(idents, tok.Literal)
		}
	}
	if len(idents) != 2 || idents[0] != "WAIT" || idents[1] != "RETURN" {
		t.Errorf("unexpected idents after comment skip: %v", idents)
	}
}

func TestOperators(t *testing.T) {
	l := New("x += 2\ny = 3\nz <= 4\n")
	var ops []TokenType
	for _, tok := range l.Tokenize() {
		if tok.Type.IsOperator() {
			ops = append(ops, tok.Type)
		}
	}
	want := []TokenType{TOKEN_CASSIGN_ADD, TOKEN_ASSIGN, TOKEN_LTE}
	if len(ops) != len(want) {
		t.Fatalf("got %d operators, want %d", len(ops), len(want))
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("operator %d: got %s, want %s", i, ops[i], want[i])
		}
	}
}

func TestLineAndColumnTracking(t *testing.T) {
	l := New("WAIT 0\nRETURN\n")
	toks := l.Tokenize()
	if toks[0].Line != 1 || toks[0].Column != 1 {
		t.Errorf("WAIT at %d:%d, want 1:1", toks[0].Line, toks[0].Column)
	}
	// RETURN is the fourth token (WAIT, 0, newline, RETURN)
	if toks[3].Line != 2 || toks[3].Column != 1 {
		t.Errorf("RETURN at %d:%d, want 2:1", toks[3].Line, toks[3].Column)
	}
}

func TestStringLiteral(t *testing.T) {
	l := New("SAVE_STRING_TO_DEBUG_FILE \"hello world\"\n")
	toks := l.Tokenize()
	if toks[1].Type != TOKEN_STRING || toks[1].Literal != "hello world" {
		t.Fatalf("expected string literal, got %s %q", toks[1].Type, toks[1].Literal)
	}
}

func TestDirective(t *testing.T) {
	l := New("#DEFINE LIMIT 100\n")
	toks := l.Tokenize()
	if toks[0].Type != TOKEN_DEFINE {
		t.Fatalf("expected #DEFINE, got %s", toks[0].Type)
	}
}

func TestScopeBraces(t *testing.T) {
	l := New("{\nLVAR_INT a\n}\n")
	toks := l.Tokenize()
	if toks[0].Type != TOKEN_LBRACE {
		t.Errorf("expected {, got %s", toks[0].Type)
	}
	if toks[2].Type != TOKEN_LVAR_INT {
		t.Errorf("expected LVAR_INT, got %s", toks[2].Type)
	}
}
