// Package parser is the minimal front end for the DSL: a hand-rolled
// lexer and a recursive-descent parser that turns source text into an
// ast.Program. Grounded on original_source/src/parser.cpp's grammar,
// reimplemented in smasonuk-sicpu's token/lexer/parser shape.
package parser

import (
	"fmt"
	"strconv"

	"github.com/smasonuk/tmc/pkg/ast"
	"github.com/smasonuk/tmc/pkg/tm"
)

// Parse lexes and parses src into a Program. Syntax errors are returned,
// never panicked, named with the offending token's line/column.
func Parse(src string) (*ast.Program, error) {
	p := &Parser{lex: NewLexer(src), declared: map[string]bool{}}
	return p.parseProgram()
}

// Parser holds parse-time state: the token stream and the set of variable
// names already declared, used to distinguish a `let` from an `assign`
// the way original_source's parser does not bother to (it always emits a
// let; this repo tracks declarations so `sum = sum + i` inside a loop
// body correctly reassigns rather than re-declaring every iteration).
type Parser struct {
	lex      *Lexer
	declared map[string]bool
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for {
		t := p.lex.Peek()
		switch {
		case t.Type == EOF:
			return prog, nil
		case t.Type == NEWLINE:
			p.lex.Next()
		case t.Type == IDENT && t.Text == "alphabet":
			syms, err := p.parseSymbolHeader("alphabet")
			if err != nil {
				return nil, err
			}
			prog.InputAlphabet = append(prog.InputAlphabet, syms...)
		case t.Type == IDENT && t.Text == "markers":
			syms, err := p.parseSymbolHeader("markers")
			if err != nil {
				return nil, err
			}
			prog.Markers = append(prog.Markers, syms...)
		default:
			stmt, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			prog.Body = append(prog.Body, stmt)
		}
	}
}

// parseSymbolHeader parses `alphabet input: [a, b, c]` or
// `markers: [x, y]`, discarding the optional classifier word after the
// keyword (original_source's ParseAlphabet does the same: it reads and
// discards the "input"/"output" qualifier without branching on it).
func (p *Parser) parseSymbolHeader(keyword string) ([]rune, error) {
	if err := p.expectIdent(keyword); err != nil {
		return nil, err
	}
	if p.lex.Peek().Type != COLON {
		p.lex.Next() // the classifier word, e.g. "input"
	}
	if err := p.expect(COLON); err != nil {
		return nil, err
	}
	if err := p.expect(LBRACKET); err != nil {
		return nil, err
	}
	var out []rune
	for p.lex.Peek().Type != RBRACKET {
		t := p.lex.Next()
		if t.Type == EOF {
			return nil, fmt.Errorf("parser: unexpected EOF in %s list", keyword)
		}
		if t.Type == IDENT || t.Type == SYMBOL {
			out = append(out, resolveSymbol(t))
		}
		if p.lex.Peek().Type == COMMA {
			p.lex.Next()
		}
	}
	if err := p.expect(RBRACKET); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveSymbol(t Token) rune {
	if t.Text == "_" {
		return rune(tm.Blank)
	}
	return []rune(t.Text)[0]
}

func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	var body []ast.Stmt
	for {
		t := p.lex.Peek()
		if t.Type == RBRACE {
			p.lex.Next()
			return body, nil
		}
		if t.Type == NEWLINE {
			p.lex.Next()
			continue
		}
		if t.Type == EOF {
			return nil, fmt.Errorf("parser: unexpected EOF in block")
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	t := p.lex.Peek()
	if t.Type != IDENT {
		return nil, fmt.Errorf("parser: unexpected token %s", t)
	}

	switch t.Text {
	case "return":
		p.lex.Next()
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ast.ReturnStmt{Value: v}, nil
	case "accept":
		p.lex.Next()
		return ast.AcceptStmt{}, nil
	case "reject":
		p.lex.Next()
		return ast.RejectStmt{}, nil
	case "for":
		return p.parseFor()
	case "if":
		return p.parseIf()
	case "loop":
		return p.parseLoop()
	case "scan":
		return p.parseScan()
	case "write":
		p.lex.Next()
		sym := p.lex.Next()
		return ast.WriteStmt{Symbol: resolveSymbol(sym)}, nil
	case "left", "L":
		p.lex.Next()
		return ast.MoveStmt{Dir: "left"}, nil
	case "right", "R":
		p.lex.Next()
		return ast.MoveStmt{Dir: "right"}, nil
	case "rewind":
		p.lex.Next()
		dirTok := p.lex.Next()
		dir := "right"
		if dirTok.Text == "left" || dirTok.Text == "L" {
			dir = "left"
		}
		return ast.RewindStmt{Dir: dir}, nil
	case "inc":
		p.lex.Next()
		name := p.lex.Next().Text
		return ast.IncStmt{Name: name}, nil
	case "append":
		p.lex.Next()
		src := p.lex.Next().Text
		if err := p.expect(MINUS); err != nil {
			return nil, err
		}
		if err := p.expect(GT); err != nil {
			return nil, err
		}
		dst := p.lex.Next().Text
		return ast.AppendStmt{Src: src, Dest: dst}, nil
	case "break":
		p.lex.Next()
		return ast.BreakStmt{}, nil
	}

	// Variable declaration or reassignment: `name = expr`.
	name := p.lex.Next().Text
	if err := p.expect(EQUALS); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.declared[name] {
		return ast.AssignStmt{Name: name, Value: value}, nil
	}
	p.declared[name] = true
	return ast.LetStmt{Name: name, Value: value}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	if err := p.expectIdent("for"); err != nil {
		return nil, err
	}
	varTok := p.lex.Next()
	if err := p.expectIdent("in"); err != nil {
		return nil, err
	}
	start, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(DOTDOT); err != nil {
		return nil, err
	}
	end, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	p.declared[varTok.Text] = true
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.ForStmt{Var: varTok.Text, Start: start, End: end, Body: body}, nil
}

// parseIf mirrors original_source's single-token-of-lookahead grammar: the
// token right after "if" is consumed unconditionally, then if what
// follows it is immediately "{" it's a branch on the current tape symbol
// (IfCurrentStmt); otherwise that same token is the start of a general
// expression (IfStmt/IfEqStmt).
func (p *Parser) parseIf() (ast.Stmt, error) {
	if err := p.expectIdent("if"); err != nil {
		return nil, err
	}
	t := p.lex.Next()

	if (t.Type == IDENT || t.Type == SYMBOL) && p.lex.Peek().Type == LBRACE {
		return p.parseIfCurrentFrom(t)
	}
	return p.parseIfExprFrom(t)
}

func (p *Parser) parseIfCurrentFrom(first Token) (ast.Stmt, error) {
	if err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	branches := []ast.IfCurrentBranch{{Symbol: resolveSymbol(first), Body: body}}

	var elseBody []ast.Stmt
	for p.lex.Peek().Type == IDENT && p.lex.Peek().Text == "else" {
		p.lex.Next()
		peek := p.lex.Peek()
		if peek.Type == IDENT && peek.Text == "if" {
			p.lex.Next()
			symTok := p.lex.Next()
			if err := p.expect(LBRACE); err != nil {
				return nil, err
			}
			b, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			branches = append(branches, ast.IfCurrentBranch{Symbol: resolveSymbol(symTok), Body: b})
			continue
		}
		if err := p.expect(LBRACE); err != nil {
			return nil, err
		}
		elseBody, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
		break
	}

	return ast.IfCurrentStmt{Branches: branches, Else: elseBody}, nil
}

func (p *Parser) parseIfExprFrom(first Token) (ast.Stmt, error) {
	left, err := p.primaryFrom(first)
	if err != nil {
		return nil, err
	}

	var cond ast.Expr
	next := p.lex.Peek()
	switch next.Type {
	case EQ:
		p.lex.Next()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		if lv, lok := left.(ast.VarRef); lok {
			if rv, rok := right.(ast.VarRef); rok {
				return p.finishIfEq(lv.Name, rv.Name)
			}
		}
		cond = ast.BinExpr{Op: ast.OpEq, Left: left, Right: right}
	case NE:
		p.lex.Next()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		cond = ast.BinExpr{Op: ast.OpNe, Left: left, Right: right}
	case LT:
		p.lex.Next()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		cond = ast.BinExpr{Op: ast.OpLt, Left: left, Right: right}
	case LE:
		p.lex.Next()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		cond = ast.BinExpr{Op: ast.OpLe, Left: left, Right: right}
	case GT:
		p.lex.Next()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		cond = ast.BinExpr{Op: ast.OpGt, Left: left, Right: right}
	case GE:
		p.lex.Next()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		cond = ast.BinExpr{Op: ast.OpGe, Left: left, Right: right}
	default:
		cond = left
	}

	if err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseBody []ast.Stmt
	if p.lex.Peek().Type == IDENT && p.lex.Peek().Text == "else" {
		p.lex.Next()
		if err := p.expect(LBRACE); err != nil {
			return nil, err
		}
		elseBody, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	return ast.IfStmt{Cond: cond, Then: then, Else: elseBody}, nil
}

func (p *Parser) finishIfEq(left, right string) (ast.Stmt, error) {
	if err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseBody []ast.Stmt
	if p.lex.Peek().Type == IDENT && p.lex.Peek().Text == "else" {
		p.lex.Next()
		if err := p.expect(LBRACE); err != nil {
			return nil, err
		}
		elseBody, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	return ast.IfEqStmt{Left: left, Right: right, Then: then, Else: elseBody}, nil
}

func (p *Parser) parseLoop() (ast.Stmt, error) {
	if err := p.expectIdent("loop"); err != nil {
		return nil, err
	}
	if err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.LoopStmt{Body: body}, nil
}

func (p *Parser) parseScan() (ast.Stmt, error) {
	if err := p.expectIdent("scan"); err != nil {
		return nil, err
	}
	dirTok := p.lex.Next()
	dir := "right"
	if dirTok.Text == "left" || dirTok.Text == "L" {
		dir = "left"
	}
	if err := p.expectIdent("for"); err != nil {
		return nil, err
	}

	var symbols []rune
	if p.lex.Peek().Type == LBRACKET {
		p.lex.Next()
		for p.lex.Peek().Type != RBRACKET {
			t := p.lex.Next()
			if t.Type == IDENT || t.Type == SYMBOL {
				symbols = append(symbols, resolveSymbol(t))
			}
			if p.lex.Peek().Type == COMMA {
				p.lex.Next()
			}
		}
		if err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
	} else {
		t := p.lex.Next()
		symbols = append(symbols, resolveSymbol(t))
	}

	return ast.ScanStmt{Dir: dir, Symbols: symbols}, nil
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	t := p.lex.Peek()
	var op ast.BinOp
	switch t.Type {
	case EQ:
		op = ast.OpEq
	case NE:
		op = ast.OpNe
	case LT:
		op = ast.OpLt
	case LE:
		op = ast.OpLe
	case GT:
		op = ast.OpGt
	case GE:
		op = ast.OpGe
	default:
		return left, nil
	}
	p.lex.Next()
	right, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	return ast.BinExpr{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseAddSub() (ast.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.lex.Peek()
		switch t.Type {
		case PLUS:
			p.lex.Next()
			right, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			left = ast.BinExpr{Op: ast.OpAdd, Left: left, Right: right}
		case MINUS:
			p.lex.Next()
			right, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			left = ast.BinExpr{Op: ast.OpSub, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.lex.Next()
	return p.primaryFrom(t)
}

// primaryFrom builds a primary expression from a token already consumed,
// needed by the if-statement parser which must commit to a token before
// it knows whether it started an IfCurrentStmt or an expression.
func (p *Parser) primaryFrom(t Token) (ast.Expr, error) {
	switch t.Type {
	case NUMBER:
		n, err := strconv.Atoi(t.Text)
		if err != nil {
			return nil, fmt.Errorf("parser: invalid integer %q at %d:%d", t.Text, t.Line, t.Col)
		}
		return ast.IntLit{Value: n}, nil
	case IDENT:
		if t.Text == "count" {
			if err := p.expect(LPAREN); err != nil {
				return nil, err
			}
			sym := p.lex.Next()
			if err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			return ast.CountExpr{Symbol: resolveSymbol(sym)}, nil
		}
		return ast.VarRef{Name: t.Text}, nil
	case LPAREN:
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, fmt.Errorf("parser: unexpected token %s in expression", t)
	}
}

func (p *Parser) expect(typ TokenType) error {
	t := p.lex.Next()
	if t.Type != typ {
		return fmt.Errorf("parser: expected %s, got %s", typ, t)
	}
	return nil
}

func (p *Parser) expectIdent(text string) error {
	t := p.lex.Next()
	if t.Type != IDENT || t.Text != text {
		return fmt.Errorf("parser: expected %q, got %s", text, t)
	}
	return nil
}
