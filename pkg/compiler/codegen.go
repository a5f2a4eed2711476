// Package compiler lowers an ast.Program onto a tm.TM: a single-tape
// deterministic Turing machine operating on the unary-tally variable-
// region tape layout. Grounded on original_source/src/hlcompiler.cpp,
// reimplemented in smasonuk-sicpu's CodeGen shape: a struct holding
// generation state, one method per statement/expression kind, states
// minted from per-purpose name hints.
package compiler

import (
	"fmt"

	"github.com/smasonuk/tmc/pkg/ast"
	"github.com/smasonuk/tmc/pkg/tm"
)

// varInfo is a declared variable's tape-region index: region 0 is the
// first `#`-delimited band after the input, region 1 the next, and so on.
type varInfo struct {
	index int
}

// CodeGen holds all mutable state for lowering one Program. It is not
// reused across programs; construct a fresh one per Compile call.
type CodeGen struct {
	t            *tm.TM
	alphabet     []tm.Symbol // snapshot taken right after alphabet setup
	vars         map[string]varInfo
	nextVarIndex int
	stateCounter int
	breakTargets []tm.State
}

// Compile lowers prog onto a validated tm.TM.
func Compile(prog *ast.Program) (*tm.TM, error) {
	g := &CodeGen{vars: map[string]varInfo{}}
	return g.compile(prog)
}

func (g *CodeGen) compile(prog *ast.Program) (*tm.TM, error) {
	start := tm.State("start0")
	g.t = tm.New(start, "qA", "qR")
	g.setupAlphabet(prog)

	entry := g.emitPreamble(start)
	current, err := g.compileStmts(prog.Body, entry)
	if err != nil {
		return nil, err
	}

	g.joinUnset(current, g.t.Accept)

	g.t.Finalize()
	if err := g.t.Validate(); err != nil {
		return nil, fmt.Errorf("compiler: generated machine failed validation: %w", err)
	}
	return g.t, nil
}

// setupAlphabet builds the tape alphabet the way hlcompiler.cpp's
// SetupAlphabet does: the declared input alphabet, its uppercase marked
// twins (for lowercase letters only, matching the reference's a-z
// assumption), the reserved symbols, and any declared markers. The
// result is snapshotted into g.alphabet; every subsequent "for each tape
// symbol" loop in this package iterates that fixed slice.
func (g *CodeGen) setupAlphabet(prog *ast.Program) {
	for _, r := range prog.InputAlphabet {
		s := tm.Symbol(r)
		g.t.InputAlphabet[s] = struct{}{}
		g.t.TapeAlphabet[s] = struct{}{}
		if r >= 'a' && r <= 'z' {
			g.t.TapeAlphabet[tm.Symbol(r-'a'+'A')] = struct{}{}
		}
	}
	g.t.TapeAlphabet[tm.Blank] = struct{}{}
	g.t.TapeAlphabet[tm.Sep] = struct{}{}
	g.t.TapeAlphabet[tm.One] = struct{}{}
	g.t.TapeAlphabet[tm.Marked] = struct{}{}
	g.t.TapeAlphabet[tm.LeftEnd] = struct{}{}
	for _, r := range prog.Markers {
		g.t.TapeAlphabet[tm.Symbol(r)] = struct{}{}
	}

	g.alphabet = g.t.AllTapeSymbols()
}

// markOf returns the marked twin of an input symbol: its uppercase form
// for a lowercase letter, itself otherwise (matching SetupAlphabet's
// twinning rule).
func markOf(s rune) tm.Symbol {
	if s >= 'a' && s <= 'z' {
		return tm.Symbol(s - 'a' + 'A')
	}
	return tm.Symbol(s)
}

func (g *CodeGen) newState(hint string) tm.State {
	g.stateCounter++
	return tm.State(fmt.Sprintf("%s%d", hint, g.stateCounter))
}

// declareVar registers name as a fresh region if not already declared.
func (g *CodeGen) declareVar(name string) varInfo {
	if v, ok := g.vars[name]; ok {
		return v
	}
	v := varInfo{index: g.nextVarIndex}
	g.nextVarIndex++
	g.vars[name] = v
	return v
}

// getVar looks up a declared variable. Unlike hlcompiler.cpp's GetVar,
// this does not auto-declare on a miss: an undeclared reference is a
// compiler error here, not silent region-zero reuse, matching this
// repo's no-panics-on-user-input ambient convention.
func (g *CodeGen) getVar(name string) (varInfo, error) {
	v, ok := g.vars[name]
	if !ok {
		return varInfo{}, fmt.Errorf("compiler: reference to undeclared variable %q", name)
	}
	return v, nil
}

// connect wires an unconditional (identity-write, stay) transition from
// every tape symbol at `from` into `to`. It is how two fragments fuse:
// the exit of one statement becomes the entry of the next. A no-op when
// from is Accept or Reject: those are terminal states and Validate
// rejects any outgoing transition from them, so a fragment that already
// ended in accept/reject stays ended.
func (g *CodeGen) connect(from, to tm.State) {
	if from == g.t.Accept || from == g.t.Reject {
		return
	}
	for _, s := range g.alphabet {
		g.t.AddTransition(from, s, s, tm.S, to)
	}
}

// joinUnset wires an identity transition into `to` for every symbol at
// `from` that doesn't already have an explicit transition. Used to join
// fragment exits (if/loop/match bodies) without clobbering a branch the
// body already wired to accept/reject/break. Also a no-op on Accept/
// Reject, for the same reason as connect.
func (g *CodeGen) joinUnset(from, to tm.State) {
	if from == g.t.Accept || from == g.t.Reject {
		return
	}
	for _, s := range g.alphabet {
		if !g.t.HasTransition(from, s) {
			g.t.AddTransition(from, s, s, tm.S, to)
		}
	}
}

func (g *CodeGen) compileStmts(stmts []ast.Stmt, entry tm.State) (tm.State, error) {
	current := entry
	for _, stmt := range stmts {
		var err error
		current, err = g.compileStmt(stmt, current)
		if err != nil {
			return "", err
		}
	}
	return current, nil
}

func (g *CodeGen) compileStmt(stmt ast.Stmt, entry tm.State) (tm.State, error) {
	switch s := stmt.(type) {
	case ast.LetStmt:
		return g.compileLet(s, entry)
	case ast.AssignStmt:
		return g.compileAssign(s, entry)
	case ast.IncStmt:
		return g.compileInc(s, entry)
	case ast.AppendStmt:
		return g.compileAppend(s, entry)
	case ast.ForStmt:
		return g.compileFor(s, entry)
	case ast.IfStmt:
		return g.compileIf(s, entry)
	case ast.IfEqStmt:
		return g.compileIfEq(s, entry)
	case ast.ReturnStmt:
		return g.compileReturn(s, entry)
	case ast.AcceptStmt:
		g.connect(entry, g.t.Accept)
		return g.t.Accept, nil
	case ast.RejectStmt:
		g.connect(entry, g.t.Reject)
		return g.t.Reject, nil
	case ast.ScanStmt:
		return g.compileScan(s, entry), nil
	case ast.WriteStmt:
		return g.compileWrite(s, entry), nil
	case ast.MoveStmt:
		return g.compileMove(s, entry), nil
	case ast.RewindStmt:
		return g.compileRewind(s, entry), nil
	case ast.LoopStmt:
		return g.compileLoop(s, entry)
	case ast.BreakStmt:
		return g.compileBreak(entry)
	case ast.IfCurrentStmt:
		return g.compileIfCurrent(s, entry)
	default:
		return "", fmt.Errorf("compiler: unknown statement type %T", stmt)
	}
}
