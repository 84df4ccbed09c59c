package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gtamodding/gta3sc/pkg/compiler/lexer"
)

// ParserError represents a syntax error with location information.
type ParserError struct {
	Message string
	Line    int
	Column  int
}

// Error implements the error interface.
func (e *ParserError) Error() string {
	return fmt.Sprintf("parser error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// Parser builds a ScriptFile from the token stream.
type Parser struct {
	tokens []lexer.Token
	pos    int
	errors []error
}

// New creates a new Parser reading from the given lexer.
func New(l *lexer.Lexer) *Parser {
	return &Parser{tokens: l.Tokenize()}
}

// ParseFile parses a whole translation unit. name is the script's display
// name (file stem) and path its source path, both used for diagnostics.
// All syntax errors are accumulated; parsing continues on the next line.
func (p *Parser) ParseFile(name, path string) (*ScriptFile, []error) {
	file := &ScriptFile{Name: strings.ToUpper(name), Path: path}
	file.Statements = p.parseBlock()
	if !p.at(lexer.TOKEN_EOF) {
		p.errorf(p.cur(), "unexpected '%s'", p.cur().Literal)
	}
	return file, p.errors
}

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() lexer.Token {
	if p.pos+1 >= len(p.tokens) {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() lexer.Token {
	tok := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) at(t lexer.TokenType) bool {
	return p.cur().Type == t
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...any) {
	p.errors = append(p.errors, &ParserError{
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Column:  tok.Column,
	})
}

// syncLine skips tokens up to and including the next newline, recovering
// from a syntax error.
func (p *Parser) syncLine() {
	for !p.at(lexer.TOKEN_EOF) && !p.at(lexer.TOKEN_NEWLINE) {
		p.advance()
	}
	if p.at(lexer.TOKEN_NEWLINE) {
		p.advance()
	}
}

func (p *Parser) skipNewlines() {
	for p.at(lexer.TOKEN_NEWLINE) {
		p.advance()
	}
}

// expectNewline consumes the end of a statement line.
func (p *Parser) expectNewline() {
	if p.at(lexer.TOKEN_EOF) {
		return
	}
	if !p.at(lexer.TOKEN_NEWLINE) {
		p.errorf(p.cur(), "expected end of line, got '%s'", p.cur().Literal)
		p.syncLine()
		return
	}
	p.advance()
}

// blockEnders are the keywords that close an enclosing block statement.
var blockEnders = map[lexer.TokenType]bool{
	lexer.TOKEN_ELSE:      true,
	lexer.TOKEN_ENDIF:     true,
	lexer.TOKEN_ENDWHILE:  true,
	lexer.TOKEN_ENDREPEAT: true,
	lexer.TOKEN_CASE:      true,
	lexer.TOKEN_DEFAULT:   true,
	lexer.TOKEN_ENDSWITCH: true,
	lexer.TOKEN_RBRACE:    true,
}

// parseBlock parses statements until EOF or a block-ending keyword.
// The ending token is left for the caller to consume.
func (p *Parser) parseBlock() []Statement {
	var stmts []Statement
	for {
		p.skipNewlines()
		if p.at(lexer.TOKEN_EOF) || blockEnders[p.cur().Type] {
			return stmts
		}
		if stmt := p.parseStatement(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
}

// parseStatement parses a single statement. Returns nil after an error,
// in which case the parser has resynchronized at the next line.
func (p *Parser) parseStatement() Statement {
	tok := p.cur()
	switch tok.Type {
	case lexer.TOKEN_LABEL:
		p.advance()
		return &LabelStatement{Token: tok, Name: tok.Literal}
	case lexer.TOKEN_LBRACE:
		return p.parseScope()
	case lexer.TOKEN_VAR_INT, lexer.TOKEN_VAR_FLOAT, lexer.TOKEN_VAR_TEXT_LABEL,
		lexer.TOKEN_LVAR_INT, lexer.TOKEN_LVAR_FLOAT, lexer.TOKEN_LVAR_TEXT_LABEL:
		return p.parseVarDecl()
	case lexer.TOKEN_IF:
		return p.parseIf()
	case lexer.TOKEN_WHILE:
		return p.parseWhile()
	case lexer.TOKEN_REPEAT:
		return p.parseRepeat()
	case lexer.TOKEN_SWITCH:
		return p.parseSwitch()
	case lexer.TOKEN_BREAK:
		p.advance()
		p.expectNewline()
		return &BreakStatement{Token: tok}
	case lexer.TOKEN_CONTINUE:
		p.advance()
		p.expectNewline()
		return &ContinueStatement{Token: tok}
	case lexer.TOKEN_MISSION_START:
		p.advance()
		p.expectNewline()
		return &MissionStartStatement{Token: tok}
	case lexer.TOKEN_MISSION_END:
		p.advance()
		p.expectNewline()
		return &MissionEndStatement{Token: tok}
	case lexer.TOKEN_DEFINE:
		return p.parseDefine()
	case lexer.TOKEN_INCREMENT, lexer.TOKEN_DECREMENT:
		return p.parseIncDec()
	case lexer.TOKEN_IDENT:
		return p.parseCommandOrExpr()
	default:
		p.errorf(tok, "unexpected '%s'", tok.Literal)
		p.syncLine()
		return nil
	}
}

func (p *Parser) parseScope() Statement {
	tok := p.advance() // '{'
	p.expectNewline()
	body := p.parseBlock()
	if !p.at(lexer.TOKEN_RBRACE) {
		p.errorf(p.cur(), "expected '}' to close scope")
		return nil
	}
	p.advance()
	p.expectNewline()
	return &ScopeStatement{Token: tok, Body: body}
}

func (p *Parser) parseVarDecl() Statement {
	tok := p.advance()
	decl := &VarDeclStatement{Token: tok}
	switch tok.Type {
	case lexer.TOKEN_VAR_INT, lexer.TOKEN_LVAR_INT:
		decl.Type = DeclInt
	case lexer.TOKEN_VAR_FLOAT, lexer.TOKEN_LVAR_FLOAT:
		decl.Type = DeclFloat
	default:
		decl.Type = DeclTextLabel
	}
	decl.Global = tok.Type == lexer.TOKEN_VAR_INT ||
		tok.Type == lexer.TOKEN_VAR_FLOAT ||
		tok.Type == lexer.TOKEN_VAR_TEXT_LABEL

	for p.at(lexer.TOKEN_IDENT) {
		name := VarDeclName{Name: p.cur().Literal, Token: p.cur()}
		p.advance()
		if p.at(lexer.TOKEN_LBRACKET) {
			p.advance()
			if !p.at(lexer.TOKEN_INT) {
				p.errorf(p.cur(), "expected array size")
				p.syncLine()
				return nil
			}
			name.ArrayLen, _ = strconv.ParseInt(p.cur().Literal, 10, 64)
			p.advance()
			if !p.at(lexer.TOKEN_RBRACKET) {
				p.errorf(p.cur(), "expected ']'")
				p.syncLine()
				return nil
			}
			p.advance()
		}
		decl.Names = append(decl.Names, name)
	}
	if len(decl.Names) == 0 {
		p.errorf(tok, "expected variable name after %s", tok.Literal)
		p.syncLine()
		return nil
	}
	p.expectNewline()
	return decl
}

// parseConditions parses the condition list of an IF or WHILE: the first
// condition on the statement's own line, then any number of AND or OR
// lines. Mixing AND and OR in one list is an error.
func (p *Parser) parseConditions() (conds []Condition, isOr bool) {
	if cond, ok := p.parseCondition(); ok {
		conds = append(conds, cond)
	}
	p.expectNewline()

	sawAnd, sawOr := false, false
	for {
		p.skipNewlines()
		if !p.at(lexer.TOKEN_AND) && !p.at(lexer.TOKEN_OR) {
			break
		}
		join := p.advance()
		if join.Type == lexer.TOKEN_AND {
			sawAnd = true
		} else {
			sawOr = true
		}
		if cond, ok := p.parseCondition(); ok {
			conds = append(conds, cond)
		}
		p.expectNewline()
	}
	if sawAnd && sawOr {
		p.errorf(p.cur(), "cannot mix AND and OR in a single condition list")
	}
	return conds, sawOr
}

var comparators = map[lexer.TokenType]CmpOp{
	lexer.TOKEN_ASSIGN: CmpEq,
	lexer.TOKEN_GT:     CmpGt,
	lexer.TOKEN_GTE:    CmpGe,
	lexer.TOKEN_LT:     CmpLt,
	lexer.TOKEN_LTE:    CmpLe,
}

// parseCondition parses a single condition: an optional NOT followed by
// either a comparison (a OP b) or a conditional command.
func (p *Parser) parseCondition() (Condition, bool) {
	var cond Condition
	if p.at(lexer.TOKEN_NOT) {
		cond.Not = true
		p.advance()
	}

	tok := p.cur()
	if tok.Type != lexer.TOKEN_IDENT && tok.Type != lexer.TOKEN_INT && tok.Type != lexer.TOKEN_FLOAT {
		p.errorf(tok, "expected condition, got '%s'", tok.Literal)
		p.syncLine()
		return cond, false
	}

	// A comparison when the token after the first operand is relational.
	if op, isCmp := p.peekComparison(); isCmp {
		left := p.parseArg()
		opTok := p.advance()
		right := p.parseArg()
		if left == nil || right == nil {
			p.syncLine()
			return cond, false
		}
		cond.Cmp = &Comparison{Token: opTok, Op: op, Left: left, Right: right}
		return cond, true
	}

	if tok.Type != lexer.TOKEN_IDENT {
		p.errorf(tok, "expected condition, got '%s'", tok.Literal)
		p.syncLine()
		return cond, false
	}
	cmd := p.parseCommandTail()
	if cmd == nil {
		return cond, false
	}
	cond.Cmd = cmd
	return cond, true
}

// peekComparison checks whether the current line is "operand OP operand".
// It looks past an optional array subscript on the first operand.
func (p *Parser) peekComparison() (CmpOp, bool) {
	i := p.pos + 1
	if i < len(p.tokens) && p.tokens[i].Type == lexer.TOKEN_LBRACKET {
		for i < len(p.tokens) && p.tokens[i].Type != lexer.TOKEN_RBRACKET &&
			p.tokens[i].Type != lexer.TOKEN_NEWLINE {
			i++
		}
		i++
	}
	if i < len(p.tokens) {
		if op, ok := comparators[p.tokens[i].Type]; ok {
			return op, true
		}
	}
	return 0, false
}

func (p *Parser) parseIf() Statement {
	tok := p.advance()
	conds, isOr := p.parseConditions()
	stmt := &IfStatement{Token: tok, Or: isOr, Conds: conds}
	stmt.Then = p.parseBlock()
	if p.at(lexer.TOKEN_ELSE) {
		p.advance()
		p.expectNewline()
		stmt.Else = p.parseBlock()
	}
	if !p.at(lexer.TOKEN_ENDIF) {
		p.errorf(p.cur(), "expected ENDIF")
		return nil
	}
	p.advance()
	p.expectNewline()
	return stmt
}

func (p *Parser) parseWhile() Statement {
	tok := p.advance()
	conds, isOr := p.parseConditions()
	stmt := &WhileStatement{Token: tok, Or: isOr, Conds: conds}
	stmt.Body = p.parseBlock()
	if !p.at(lexer.TOKEN_ENDWHILE) {
		p.errorf(p.cur(), "expected ENDWHILE")
		return nil
	}
	p.advance()
	p.expectNewline()
	return stmt
}

func (p *Parser) parseRepeat() Statement {
	tok := p.advance()
	count := p.parseArg()
	loopVar := p.parseArg()
	if count == nil || loopVar == nil {
		p.errorf(tok, "REPEAT requires a count and a loop variable")
		p.syncLine()
		return nil
	}
	p.expectNewline()
	stmt := &RepeatStatement{Token: tok, Count: count, Var: loopVar}
	stmt.Body = p.parseBlock()
	if !p.at(lexer.TOKEN_ENDREPEAT) {
		p.errorf(p.cur(), "expected ENDREPEAT")
		return nil
	}
	p.advance()
	p.expectNewline()
	return stmt
}

func (p *Parser) parseSwitch() Statement {
	tok := p.advance()
	discriminant := p.parseArg()
	if discriminant == nil {
		p.errorf(tok, "SWITCH requires a variable")
		p.syncLine()
		return nil
	}
	p.expectNewline()

	stmt := &SwitchStatement{Token: tok, Var: discriminant}
	for {
		p.skipNewlines()
		switch p.cur().Type {
		case lexer.TOKEN_CASE:
			caseTok := p.advance()
			value := p.parseArg()
			if value == nil {
				p.errorf(caseTok, "CASE requires a constant value")
				p.syncLine()
				continue
			}
			p.expectNewline()
			body := p.parseBlock()
			stmt.Cases = append(stmt.Cases, &CaseClause{Token: caseTok, Value: value, Body: body})
		case lexer.TOKEN_DEFAULT:
			defTok := p.advance()
			p.expectNewline()
			if stmt.HasDefault {
				p.errorf(defTok, "duplicate DEFAULT in SWITCH")
			}
			stmt.HasDefault = true
			stmt.DefaultAfter = len(stmt.Cases)
			stmt.Default = p.parseBlock()
		case lexer.TOKEN_ENDSWITCH:
			p.advance()
			p.expectNewline()
			return stmt
		default:
			p.errorf(p.cur(), "expected CASE, DEFAULT or ENDSWITCH")
			return nil
		}
	}
}

func (p *Parser) parseDefine() Statement {
	tok := p.advance()
	if !p.at(lexer.TOKEN_IDENT) {
		p.errorf(p.cur(), "expected symbol name after #DEFINE")
		p.syncLine()
		return nil
	}
	stmt := &DefineStatement{Token: tok, Name: p.cur().Literal, Value: "1"}
	p.advance()
	if p.at(lexer.TOKEN_INT) || p.at(lexer.TOKEN_IDENT) {
		stmt.Value = p.cur().Literal
		p.advance()
	}
	p.expectNewline()
	return stmt
}

func (p *Parser) parseIncDec() Statement {
	tok := p.advance()
	dest := p.parseArg()
	if dest == nil {
		p.errorf(tok, "expected variable after '%s'", tok.Literal)
		p.syncLine()
		return nil
	}
	p.expectNewline()
	op := OpInc
	if tok.Type == lexer.TOKEN_DECREMENT {
		op = OpDec
	}
	return &ExprStatement{Token: tok, Op: op, Dest: dest}
}

// parseCommandOrExpr disambiguates between a command statement and an
// expression statement by looking for an assignment operator after the
// first operand.
func (p *Parser) parseCommandOrExpr() Statement {
	if p.isExprLine() {
		return p.parseExpr()
	}
	// Postfix x++ / x--.
	if p.peek().Type == lexer.TOKEN_INCREMENT || p.peek().Type == lexer.TOKEN_DECREMENT {
		dest := p.parseArg()
		opTok := p.advance()
		p.expectNewline()
		op := OpInc
		if opTok.Type == lexer.TOKEN_DECREMENT {
			op = OpDec
		}
		return &ExprStatement{Token: opTok, Op: op, Dest: dest}
	}
	cmd := p.parseCommandTail()
	if cmd == nil {
		return nil
	}
	p.expectNewline()
	return cmd
}

var assignOps = map[lexer.TokenType]ExprOp{
	lexer.TOKEN_ASSIGN:       OpAssign,
	lexer.TOKEN_CASSIGN_ADD:  OpAddAssign,
	lexer.TOKEN_CASSIGN_SUB:  OpSubAssign,
	lexer.TOKEN_CASSIGN_MULT: OpMulAssign,
	lexer.TOKEN_CASSIGN_DIV:  OpDivAssign,
}

func (p *Parser) isExprLine() bool {
	i := p.pos + 1
	if i < len(p.tokens) && p.tokens[i].Type == lexer.TOKEN_LBRACKET {
		for i < len(p.tokens) && p.tokens[i].Type != lexer.TOKEN_RBRACKET &&
			p.tokens[i].Type != lexer.TOKEN_NEWLINE {
			i++
		}
		i++
	}
	if i >= len(p.tokens) {
		return false
	}
	_, ok := assignOps[p.tokens[i].Type]
	return ok
}

var binaryOps = map[lexer.TokenType]ExprOp{
	lexer.TOKEN_PLUS:     OpAdd,
	lexer.TOKEN_MINUS:    OpSub,
	lexer.TOKEN_ASTERISK: OpMul,
	lexer.TOKEN_SLASH:    OpDiv,
}

func (p *Parser) parseExpr() Statement {
	dest := p.parseArg()
	opTok := p.advance()
	op := assignOps[opTok.Type]

	a := p.parseArg()
	if dest == nil || a == nil {
		p.errorf(opTok, "malformed expression")
		p.syncLine()
		return nil
	}
	stmt := &ExprStatement{Token: opTok, Op: op, Dest: dest, A: a}

	// x = a + b three-operand form, only valid after plain '='.
	if bop, ok := binaryOps[p.cur().Type]; ok {
		if op != OpAssign {
			p.errorf(p.cur(), "binary expression requires '='")
			p.syncLine()
			return nil
		}
		p.advance()
		b := p.parseArg()
		if b == nil {
			p.syncLine()
			return nil
		}
		stmt.Op = bop
		stmt.B = b
	}
	p.expectNewline()
	return stmt
}

// parseCommandTail parses a command statement starting at its name token.
func (p *Parser) parseCommandTail() *CommandStatement {
	tok := p.advance()
	cmd := &CommandStatement{Token: tok, Name: strings.ToUpper(tok.Literal)}
	for {
		switch p.cur().Type {
		case lexer.TOKEN_NEWLINE, lexer.TOKEN_EOF:
			return cmd
		case lexer.TOKEN_INT, lexer.TOKEN_FLOAT, lexer.TOKEN_IDENT, lexer.TOKEN_STRING:
			arg := p.parseArg()
			if arg == nil {
				return nil
			}
			cmd.Args = append(cmd.Args, arg)
		default:
			p.errorf(p.cur(), "unexpected '%s' in argument list", p.cur().Literal)
			p.syncLine()
			return nil
		}
	}
}

// parseArg parses one argument: a literal or an identifier with an
// optional array subscript.
func (p *Parser) parseArg() *Arg {
	tok := p.cur()
	switch tok.Type {
	case lexer.TOKEN_INT:
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.errorf(tok, "integer literal out of range: %s", tok.Literal)
			p.advance()
			return nil
		}
		p.advance()
		return &Arg{Kind: ArgInt, Int: v, Token: tok}
	case lexer.TOKEN_FLOAT:
		lit := strings.TrimRight(tok.Literal, "fF")
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			p.errorf(tok, "bad float literal: %s", tok.Literal)
			p.advance()
			return nil
		}
		p.advance()
		return &Arg{Kind: ArgFloat, Float: v, Token: tok}
	case lexer.TOKEN_STRING:
		p.advance()
		return &Arg{Kind: ArgString, Text: tok.Literal, Token: tok}
	case lexer.TOKEN_IDENT:
		p.advance()
		arg := &Arg{Kind: ArgIdent, Text: tok.Literal, Token: tok}
		if p.at(lexer.TOKEN_LBRACKET) {
			p.advance()
			arg.Index = p.parseArg()
			if arg.Index == nil {
				return nil
			}
			if !p.at(lexer.TOKEN_RBRACKET) {
				p.errorf(p.cur(), "expected ']'")
				return nil
			}
			p.advance()
		}
		return arg
	default:
		p.errorf(tok, "expected argument, got '%s'", tok.Literal)
		return nil
	}
}
