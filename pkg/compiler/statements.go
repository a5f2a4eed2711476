package compiler

import (
	"fmt"

	"github.com/smasonuk/tmc/pkg/ast"
	"github.com/smasonuk/tmc/pkg/tm"
)

// compileLet declares Name as a fresh region at the current end of the
// tape (adding its separator), then evaluates Value with the region as
// destination. Grounded on hlcompiler.cpp's CompileLet.
func (g *CodeGen) compileLet(stmt ast.LetStmt, entry tm.State) (tm.State, error) {
	dest := g.declareVar(stmt.Name)

	scanEnd := g.newState("let_scan")
	addSep := g.newState("let_sep")
	goBack := g.newState("let_back")

	for _, s := range g.alphabet {
		if s == tm.Blank {
			g.t.AddTransition(scanEnd, s, tm.Sep, tm.L, goBack)
		} else {
			g.t.AddTransition(scanEnd, s, s, tm.R, scanEnd)
		}
	}
	for _, s := range g.alphabet {
		if s == tm.LeftEnd {
			g.t.AddTransition(goBack, s, s, tm.R, addSep)
		} else {
			g.t.AddTransition(goBack, s, s, tm.L, goBack)
		}
	}
	g.connect(entry, scanEnd)

	exprDone, err := g.compileExprInto(stmt.Value, dest.index, addSep)
	if err != nil {
		return "", err
	}
	return g.emitRewindToStart(exprDone), nil
}

// compileExprInto evaluates expr, writing its result into destRegion,
// from a position on the first cell after the left-end marker. IntLit writes that many tally marks;
// CountExpr counts input-band occurrences; VarRef copies another
// region's count without disturbing it (routed through the same
// non-destructive append primitive the `append` statement uses — see
// DESIGN.md's note on why this repo does not reproduce
// hlcompiler.cpp's EmitCopyRegion, which leaves its source marked).
func (g *CodeGen) compileExprInto(expr ast.Expr, destRegion int, entry tm.State) (tm.State, error) {
	switch e := expr.(type) {
	case ast.IntLit:
		return g.emitLiteral(entry, e.Value), nil
	case ast.CountExpr:
		return g.emitCount(entry, e.Symbol, destRegion), nil
	case ast.VarRef:
		src, err := g.getVar(e.Name)
		if err != nil {
			return "", err
		}
		return g.emitAppendNonDestructive(entry, src.index, destRegion), nil
	default:
		return "", fmt.Errorf("compiler: unsupported expression in variable initializer: %T", expr)
	}
}

// emitCount scans the input band for sym, marking each occurrence as it
// is tallied into destRegion (via emitInsertInRegion), then restores the
// input band's marks before returning. Grounded on hlcompiler.cpp's
// CompileCount, generalized to target any destination region rather than
// always appending at the tape's current end.
func (g *CodeGen) emitCount(entry tm.State, sym rune, destRegion int) tm.State {
	marked := markOf(sym)
	symS := tm.Symbol(sym)

	scan := g.newState("cnt_scan")
	g.connect(entry, scan)

	done := g.newState("cnt_done")
	insert := g.newState("cnt_ins")
	for _, s := range g.alphabet {
		switch {
		case s == symS:
			g.t.AddTransition(scan, s, marked, tm.S, insert)
		case s == tm.Sep || s == tm.Blank:
			g.t.AddTransition(scan, s, s, tm.S, done)
		default:
			g.t.AddTransition(scan, s, s, tm.R, scan)
		}
	}

	preInsert := g.emitRewindToStart(insert)
	afterInsert := g.emitInsertInRegion(preInsert, destRegion)
	g.joinUnset(afterInsert, scan)

	restoreRewind := g.emitRewindToStart(done)
	restoreScan := g.newState("cnt_restore")
	g.connect(restoreRewind, restoreScan)
	restoreDone := g.newState("cnt_rdone")
	for _, s := range g.alphabet {
		switch {
		case s == marked:
			g.t.AddTransition(restoreScan, s, symS, tm.R, restoreScan)
		case s == tm.Sep || s == tm.Blank:
			g.t.AddTransition(restoreScan, s, s, tm.S, restoreDone)
		default:
			g.t.AddTransition(restoreScan, s, s, tm.R, restoreScan)
		}
	}

	return g.emitRewindToStart(restoreDone)
}

// compileAssign supports the single pattern `x = x + y`: append y's count
// onto x's region. Any other right-hand side is a compile error, exactly
// as hlcompiler.cpp's CompileAssign only implements this one shape.
func (g *CodeGen) compileAssign(stmt ast.AssignStmt, entry tm.State) (tm.State, error) {
	bin, ok := stmt.Value.(ast.BinExpr)
	if !ok || bin.Op != ast.OpAdd {
		return "", fmt.Errorf("compiler: unsupported assignment to %q: only `%s = %s + other` is implemented", stmt.Name, stmt.Name, stmt.Name)
	}
	leftVar, ok := bin.Left.(ast.VarRef)
	if !ok || leftVar.Name != stmt.Name {
		return "", fmt.Errorf("compiler: unsupported assignment to %q: left side of + must be %q itself", stmt.Name, stmt.Name)
	}
	rightVar, ok := bin.Right.(ast.VarRef)
	if !ok {
		return "", fmt.Errorf("compiler: unsupported assignment to %q: right side of + must be a variable", stmt.Name)
	}

	dst, err := g.getVar(stmt.Name)
	if err != nil {
		return "", err
	}
	src, err := g.getVar(rightVar.Name)
	if err != nil {
		return "", err
	}
	return g.emitAppendNonDestructive(entry, src.index, dst.index), nil
}

// compileInc increments Name's region by one tally in place.
func (g *CodeGen) compileInc(stmt ast.IncStmt, entry tm.State) (tm.State, error) {
	v, err := g.getVar(stmt.Name)
	if err != nil {
		return "", err
	}
	return g.emitInsertInRegion(entry, v.index), nil
}

// compileAppend appends Src's tally count onto Dest's region, leaving
// Src untouched.
func (g *CodeGen) compileAppend(stmt ast.AppendStmt, entry tm.State) (tm.State, error) {
	src, err := g.getVar(stmt.Src)
	if err != nil {
		return "", err
	}
	dst, err := g.getVar(stmt.Dest)
	if err != nil {
		return "", err
	}
	return g.emitAppendNonDestructive(entry, src.index, dst.index), nil
}

// compileFor lowers `for i in 1..n { body }`. Start must be the literal 1
// and End a bare variable reference — a lowering restriction this
// compiler enforces, not a general grammar limitation. The loop counter's
// increment and bound check both route through the VM-contract-
// preserving primitives (emitInsertInRegion, emitCompareLE) rather than
// hlcompiler.cpp's last-region-only increment and leaky comparison; see
// DESIGN.md.
func (g *CodeGen) compileFor(stmt ast.ForStmt, entry tm.State) (tm.State, error) {
	startLit, ok := stmt.Start.(ast.IntLit)
	if !ok || startLit.Value != 1 {
		return "", fmt.Errorf("compiler: for loop %q must start at the literal 1", stmt.Var)
	}
	endVar, ok := stmt.End.(ast.VarRef)
	if !ok {
		return "", fmt.Errorf("compiler: for loop %q's bound must be a bare variable", stmt.Var)
	}

	iInfo := g.declareVar(stmt.Var)
	nInfo, err := g.getVar(endVar.Name)
	if err != nil {
		return "", err
	}

	setup := g.newState("for_setup")
	loopHead := g.newState("for_head")
	loopBody := g.newState("for_body")
	loopEnd := g.newState("for_end")

	for _, s := range g.alphabet {
		if s == tm.Blank {
			g.t.AddTransition(setup, s, tm.Sep, tm.L, loopHead)
		} else {
			g.t.AddTransition(setup, s, s, tm.R, setup)
		}
	}
	g.connect(entry, setup)

	rewound := g.emitRewindToStart(loopHead)
	incr := g.emitInsertInRegion(rewound, iInfo.index)
	g.emitCompareLE(incr, iInfo.index, nInfo.index, loopBody, loopEnd)

	bodyDone, err := g.compileStmts(stmt.Body, loopBody)
	if err != nil {
		return "", err
	}
	bodyRewind := g.emitRewindToStart(bodyDone)
	g.connect(bodyRewind, loopHead)

	return g.emitRewindToStart(loopEnd), nil
}

// compileIf lowers the restricted comparison form `count(sym) == var`.
// Any other Cond shape is a compile-time error. Grounded on
// hlcompiler.cpp's CompileIf; the matching loop is a one-to-one pairing
// between unmarked occurrences of sym in the input band and unmarked
// tallies in var's own region, structured like emitCompareEqual so that
// both sides are always restored before branching. An earlier draft of
// this method scanned past separators through every variable region
// when checking for a leftover unmatched tally instead of stopping at
// var's own region boundary, which would have falsely rejected whenever
// an unrelated variable still held unconsumed tallies; this version
// navigates to var's region explicitly instead of scanning past it.
func (g *CodeGen) compileIf(stmt ast.IfStmt, entry tm.State) (tm.State, error) {
	cmp, ok := stmt.Cond.(ast.BinExpr)
	if !ok || cmp.Op != ast.OpEq {
		return "", fmt.Errorf("compiler: if condition must be a count(sym) == var comparison")
	}
	leftCount, ok := cmp.Left.(ast.CountExpr)
	if !ok {
		return "", fmt.Errorf("compiler: unsupported if condition: left side must be count(...)")
	}
	rightVar, ok := cmp.Right.(ast.VarRef)
	if !ok {
		return "", fmt.Errorf("compiler: unsupported if condition: right side must be a variable")
	}

	varInf, err := g.getVar(rightVar.Name)
	if err != nil {
		return "", err
	}

	thenSt := g.newState("then")
	elseSt := g.newState("else")
	endSt := g.newState("endif")

	g.emitCompareCountToVar(entry, leftCount.Symbol, varInf.index, thenSt, elseSt)

	thenDone, err := g.compileStmts(stmt.Then, thenSt)
	if err != nil {
		return "", err
	}
	elseDone := elseSt
	if len(stmt.Else) > 0 {
		elseDone, err = g.compileStmts(stmt.Else, elseSt)
		if err != nil {
			return "", err
		}
	}

	g.joinUnset(thenDone, endSt)
	g.joinUnset(elseDone, endSt)

	return g.emitRewindToStart(endSt), nil
}

// emitCompareCountToVar tests whether the input band holds exactly as
// many occurrences of sym as region holds tallies, via the same
// one-to-one mark-and-pair strategy as emitCompareEqual: mark the next
// unmarked sym in the input, then mark one unmarked tally in region;
// repeat until one side exhausts. Both sides are always restored before
// branching. Grounded on hlcompiler.cpp's CompileIf, generalized into
// its own primitive because the left operand here is the input band
// rather than another declared variable's region.
func (g *CodeGen) emitCompareCountToVar(entry tm.State, sym rune, region int, ifEq, ifNeq tm.State) {
	symS := tm.Symbol(sym)
	marked := markOf(sym)

	restoreEq := g.newState("ccv_req")
	restoreNeq := g.newState("ccv_rneq")
	symDone := g.newState("ccv_sdone")
	findVar := g.newState("ccv_fv")

	findSym := g.newState("ccv_fsym")
	for _, s := range g.alphabet {
		switch {
		case s == symS:
			g.t.AddTransition(findSym, s, marked, tm.S, findVar)
		case s == tm.Sep || s == tm.Blank:
			g.t.AddTransition(findSym, s, s, tm.S, symDone)
		default:
			g.t.AddTransition(findSym, s, s, tm.R, findSym)
		}
	}
	g.connect(g.emitRewindToStart(entry), findSym)

	rwVar := g.emitRewindToStart(findVar)
	inVar := g.navigateToRegion(rwVar, region)
	backToSym := g.newState("ccv_back")
	for _, s := range g.alphabet {
		switch s {
		case tm.One:
			g.t.AddTransition(inVar, s, tm.Marked, tm.S, backToSym)
		case tm.Marked:
			g.t.AddTransition(inVar, s, s, tm.R, inVar)
		default:
			g.t.AddTransition(inVar, s, s, tm.S, restoreNeq)
		}
	}

	rwSym := g.emitRewindToStart(backToSym)
	findSym2 := g.newState("ccv_fsym2")
	g.connect(rwSym, findSym2)
	for _, s := range g.alphabet {
		switch {
		case s == symS:
			g.t.AddTransition(findSym2, s, marked, tm.S, findVar)
		case s == tm.Sep || s == tm.Blank:
			g.t.AddTransition(findSym2, s, s, tm.S, symDone)
		default:
			g.t.AddTransition(findSym2, s, s, tm.R, findSym2)
		}
	}

	rwChk := g.emitRewindToStart(symDone)
	inVarChk := g.navigateToRegion(rwChk, region)
	for _, s := range g.alphabet {
		switch s {
		case tm.One:
			g.t.AddTransition(inVarChk, s, s, tm.S, restoreNeq)
		case tm.Marked:
			g.t.AddTransition(inVarChk, s, s, tm.R, inVarChk)
		default:
			g.t.AddTransition(inVarChk, s, s, tm.S, restoreEq)
		}
	}

	afterInputEq := g.emitRestoreInput(restoreEq, sym)
	afterVarEq := g.emitRestoreRegion(afterInputEq, region)
	g.joinUnset(afterVarEq, ifEq)

	afterInputNeq := g.emitRestoreInput(restoreNeq, sym)
	afterVarNeq := g.emitRestoreRegion(afterInputNeq, region)
	g.joinUnset(afterVarNeq, ifNeq)
}

// emitRestoreInput rewinds to the start and sweeps the input band,
// converting every marked twin of sym back to sym.
func (g *CodeGen) emitRestoreInput(entry tm.State, sym rune) tm.State {
	symS := tm.Symbol(sym)
	marked := markOf(sym)

	atStart := g.emitRewindToStart(entry)
	sweep := g.newState("rsti_sweep")
	g.connect(atStart, sweep)

	done := g.newState("rsti_done")
	for _, s := range g.alphabet {
		switch {
		case s == marked:
			g.t.AddTransition(sweep, s, symS, tm.R, sweep)
		case s == tm.Sep || s == tm.Blank:
			g.t.AddTransition(sweep, s, s, tm.S, done)
		default:
			g.t.AddTransition(sweep, s, s, tm.R, sweep)
		}
	}

	return g.emitRewindToStart(done)
}

// compileIfEq lowers the primitive variable-to-variable equality test.
func (g *CodeGen) compileIfEq(stmt ast.IfEqStmt, entry tm.State) (tm.State, error) {
	a, err := g.getVar(stmt.Left)
	if err != nil {
		return "", err
	}
	b, err := g.getVar(stmt.Right)
	if err != nil {
		return "", err
	}

	thenSt := g.newState("ifeq_then")
	elseSt := g.newState("ifeq_else")
	endSt := g.newState("ifeq_end")

	g.emitCompareEqual(entry, a.index, b.index, thenSt, elseSt)

	thenDone, err := g.compileStmts(stmt.Then, thenSt)
	if err != nil {
		return "", err
	}
	elseDone := elseSt
	if len(stmt.Else) > 0 {
		elseDone, err = g.compileStmts(stmt.Else, elseSt)
		if err != nil {
			return "", err
		}
	}

	g.joinUnset(thenDone, endSt)
	g.joinUnset(elseDone, endSt)

	return g.emitRewindToStart(endSt), nil
}

// compileReturn lowers `return <expr>` as a count(0)==0-style shortcut:
// only the two literal shorthands, IntLit(1) (accept) and IntLit(0)
// (reject), are supported, matching the DSL's two terminal statements
// rather than hlcompiler.cpp's general (and in this DSL, unreachable)
// re-dispatch through CompileIf.
func (g *CodeGen) compileReturn(stmt ast.ReturnStmt, entry tm.State) (tm.State, error) {
	lit, ok := stmt.Value.(ast.IntLit)
	if !ok {
		return "", fmt.Errorf("compiler: return value must be the literal 0 or 1")
	}
	if lit.Value != 0 && lit.Value != 1 {
		return "", fmt.Errorf("compiler: return value must be the literal 0 or 1, got %d", lit.Value)
	}
	target := g.t.Reject
	if lit.Value == 1 {
		target = g.t.Accept
	}
	g.connect(entry, target)
	return target, nil
}

func (g *CodeGen) compileScan(stmt ast.ScanStmt, entry tm.State) tm.State {
	dir := tm.R
	if stmt.Dir == "left" {
		dir = tm.L
	}
	stop := map[tm.Symbol]bool{}
	for _, r := range stmt.Symbols {
		stop[tm.Symbol(r)] = true
	}

	scan := g.newState("scan")
	done := g.newState("scan_done")
	g.connect(entry, scan)

	for _, s := range g.alphabet {
		if stop[s] {
			g.t.AddTransition(scan, s, s, tm.S, done)
		} else {
			g.t.AddTransition(scan, s, s, dir, scan)
		}
	}

	return done
}

func (g *CodeGen) compileWrite(stmt ast.WriteStmt, entry tm.State) tm.State {
	done := g.newState("write_done")
	for _, s := range g.alphabet {
		g.t.AddTransition(entry, s, tm.Symbol(stmt.Symbol), tm.S, done)
	}
	return done
}

func (g *CodeGen) compileMove(stmt ast.MoveStmt, entry tm.State) tm.State {
	dir := tm.R
	if stmt.Dir == "left" {
		dir = tm.L
	}
	done := g.newState("move_done")
	g.connectDir(entry, dir, done)
	return done
}

func (g *CodeGen) compileRewind(stmt ast.RewindStmt, entry tm.State) tm.State {
	scan := g.newState("rw")
	done := g.newState("rw_done")

	if stmt.Dir == "left" {
		for _, s := range g.alphabet {
			if s == tm.LeftEnd {
				g.t.AddTransition(scan, s, s, tm.S, done)
			} else {
				g.t.AddTransition(scan, s, s, tm.L, scan)
			}
		}
	} else {
		for _, s := range g.alphabet {
			if s == tm.Blank {
				g.t.AddTransition(scan, s, s, tm.S, done)
			} else {
				g.t.AddTransition(scan, s, s, tm.R, scan)
			}
		}
	}

	g.connect(entry, scan)
	return done
}

// compileLoop repeats Body until a nested BreakStmt targets loopExit.
func (g *CodeGen) compileLoop(stmt ast.LoopStmt, entry tm.State) (tm.State, error) {
	loopHead := g.newState("loop_head")
	loopExit := g.newState("loop_exit")

	g.breakTargets = append(g.breakTargets, loopExit)
	g.connect(entry, loopHead)

	bodyEnd, err := g.compileStmts(stmt.Body, loopHead)
	if err != nil {
		return "", err
	}

	if bodyEnd != g.t.Accept && bodyEnd != g.t.Reject && bodyEnd != loopExit {
		g.joinUnset(bodyEnd, loopHead)
	}

	g.breakTargets = g.breakTargets[:len(g.breakTargets)-1]
	return loopExit, nil
}

func (g *CodeGen) compileBreak(entry tm.State) (tm.State, error) {
	if len(g.breakTargets) == 0 {
		return "", fmt.Errorf("compiler: break outside of loop")
	}
	target := g.breakTargets[len(g.breakTargets)-1]
	g.connect(entry, target)
	return target, nil
}

// compileIfCurrent branches on the symbol currently under the head. Each
// branch is wired directly off entry on its own symbol; unmatched
// symbols fall through to Else (or straight to end if there is none).
func (g *CodeGen) compileIfCurrent(stmt ast.IfCurrentStmt, entry tm.State) (tm.State, error) {
	end := g.newState("if_cur_end")
	handled := map[tm.Symbol]bool{}

	for _, branch := range stmt.Branches {
		sym := tm.Symbol(branch.Symbol)
		branchHead := g.newState("branch")
		if !handled[sym] {
			g.t.AddTransition(entry, sym, sym, tm.S, branchHead)
		}
		handled[sym] = true

		branchEnd, err := g.compileStmts(branch.Body, branchHead)
		if err != nil {
			return "", err
		}
		if branchEnd != g.t.Accept && branchEnd != g.t.Reject {
			g.joinUnset(branchEnd, end)
		}
	}

	if len(stmt.Else) > 0 {
		elseHead := g.newState("else")
		for _, s := range g.alphabet {
			if !handled[s] && !g.t.HasTransition(entry, s) {
				g.t.AddTransition(entry, s, s, tm.S, elseHead)
			}
		}
		elseEnd, err := g.compileStmts(stmt.Else, elseHead)
		if err != nil {
			return "", err
		}
		if elseEnd != g.t.Accept && elseEnd != g.t.Reject {
			g.joinUnset(elseEnd, end)
		}
	} else {
		for _, s := range g.alphabet {
			if !handled[s] && !g.t.HasTransition(entry, s) {
				g.t.AddTransition(entry, s, s, tm.S, end)
			}
		}
	}

	return end, nil
}
