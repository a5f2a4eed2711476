package compiler

import "github.com/smasonuk/tmc/pkg/tm"

// emitPreamble shifts the input right by one cell and writes the left-end
// marker at cell 0, using one carry substate per non-blank tape symbol:
// each carry state "carries" a displaced symbol, depositing it and
// picking up whatever was in the next cell, until it reaches blank.
// Grounded on hlcompiler.cpp's EmitPreamble.
func (g *CodeGen) emitPreamble(start tm.State) tm.State {
	atInput := g.newState("pre_done")

	carryStates := map[tm.Symbol]tm.State{}
	for _, s := range g.alphabet {
		if s != tm.Blank && s != tm.LeftEnd {
			carryStates[s] = g.newState("pre_c")
		}
	}

	for _, s := range g.alphabet {
		switch {
		case s == tm.Blank:
			g.t.AddTransition(start, tm.Blank, tm.LeftEnd, tm.R, atInput)
		case s != tm.LeftEnd:
			g.t.AddTransition(start, s, tm.LeftEnd, tm.R, carryStates[s])
		}
	}

	doneRewind := g.newState("pre_rw")
	for carried, carrySt := range carryStates {
		for _, next := range g.alphabet {
			switch {
			case next == tm.Blank:
				g.t.AddTransition(carrySt, tm.Blank, carried, tm.L, doneRewind)
			case next != tm.LeftEnd:
				g.t.AddTransition(carrySt, next, carried, tm.R, carryStates[next])
			}
		}
	}

	for _, s := range g.alphabet {
		if s == tm.LeftEnd {
			g.t.AddTransition(doneRewind, s, s, tm.R, atInput)
		} else {
			g.t.AddTransition(doneRewind, s, s, tm.L, doneRewind)
		}
	}

	return atInput
}

// emitRewindToStart scans left to the left-end marker and steps one cell
// right onto the first input position. On this left-bounded tape, L from
// cell 0 is a no-op, so the left-end marker is always reached and the
// scan terminates. Grounded on hlcompiler.cpp's EmitRewindToStart.
func (g *CodeGen) emitRewindToStart(entry tm.State) tm.State {
	rewind := g.newState("rewind")
	atStart := g.newState("at_start")

	g.connectDir(entry, tm.L, rewind)

	for _, s := range g.alphabet {
		if s == tm.LeftEnd {
			g.t.AddTransition(rewind, s, s, tm.R, atStart)
		} else {
			g.t.AddTransition(rewind, s, s, tm.L, rewind)
		}
	}

	return atStart
}

// connectDir wires an identity transition in direction dir from every
// symbol at `from` into `to` (connect, but moving instead of staying). A
// no-op on Accept/Reject, same reasoning as connect.
func (g *CodeGen) connectDir(from tm.State, dir tm.Dir, to tm.State) {
	if from == g.t.Accept || from == g.t.Reject {
		return
	}
	for _, s := range g.alphabet {
		g.t.AddTransition(from, s, s, dir, to)
	}
}

// navigateToRegion assumes entry is already positioned on the first
// input cell (the uniform entry/exit position every fragment in this
// package returns to — see emitRewindToStart). It skips region+1
// separators from there, landing at the first cell of the target
// region's data. A blank encountered before the expected separator
// count is reached is treated as having arrived (the region is empty or
// past the end of the tape), matching the reference's defensive
// blank-as-stop handling.
func (g *CodeGen) navigateToRegion(entry tm.State, region int) tm.State {
	cur := entry
	for i := 0; i <= region; i++ {
		next := g.newState("navsep")
		for _, s := range g.alphabet {
			switch s {
			case tm.Sep:
				g.t.AddTransition(cur, s, s, tm.R, next)
			case tm.Blank:
				g.t.AddTransition(cur, s, s, tm.S, next)
			default:
				g.t.AddTransition(cur, s, s, tm.R, cur)
			}
		}
		cur = next
	}
	return cur
}

// emitInsertInRegion inserts one tally mark into region, navigating to
// its end (the separator following it, or blank if it is the tape's last
// region) and, for a non-last region, shifting everything after the
// insertion point one cell right via a carry chain keyed by the
// displaced symbol's class (separator / one / marked; any other symbol is
// carried as a one). Returns to the first cell after the left-end marker,
// via emitRewindToStart. Grounded on hlcompiler.cpp's EmitInsertInRegion.
func (g *CodeGen) emitInsertInRegion(entry tm.State, region int) tm.State {
	afterSeps := g.navigateToRegion(entry, region)

	scanData := g.newState("ins_data")
	g.connect(afterSeps, scanData)

	atEnd := g.newState("ins_at_end")
	for _, s := range g.alphabet {
		if s == tm.One || s == tm.Marked {
			g.t.AddTransition(scanData, s, s, tm.R, scanData)
		} else {
			g.t.AddTransition(scanData, s, s, tm.S, atEnd)
		}
	}

	done := g.newState("ins_done")
	g.t.AddTransition(atEnd, tm.Blank, tm.One, tm.S, done)

	carrySep := g.newState("ins_carry_sep")
	carryOne := g.newState("ins_carry_one")
	carryMark := g.newState("ins_carry_mark")
	g.t.AddTransition(atEnd, tm.Sep, tm.One, tm.R, carrySep)

	g.t.AddTransition(carrySep, tm.Blank, tm.Sep, tm.S, done)
	g.t.AddTransition(carrySep, tm.Sep, tm.Sep, tm.R, carrySep)
	g.t.AddTransition(carrySep, tm.One, tm.Sep, tm.R, carryOne)
	g.t.AddTransition(carrySep, tm.Marked, tm.Sep, tm.R, carryMark)

	g.t.AddTransition(carryOne, tm.Blank, tm.One, tm.S, done)
	g.t.AddTransition(carryOne, tm.Sep, tm.One, tm.R, carrySep)
	g.t.AddTransition(carryOne, tm.One, tm.One, tm.R, carryOne)
	g.t.AddTransition(carryOne, tm.Marked, tm.One, tm.R, carryMark)

	g.t.AddTransition(carryMark, tm.Blank, tm.Marked, tm.S, done)
	g.t.AddTransition(carryMark, tm.Sep, tm.Marked, tm.R, carrySep)
	g.t.AddTransition(carryMark, tm.One, tm.Marked, tm.R, carryOne)
	g.t.AddTransition(carryMark, tm.Marked, tm.Marked, tm.R, carryMark)

	for _, s := range g.alphabet {
		if s != tm.Blank && s != tm.Sep && s != tm.One && s != tm.Marked {
			// Input symbols shouldn't appear past a region's end, but wire
			// them defensively as ordinary carried data.
			g.t.AddTransition(carrySep, s, tm.Sep, tm.R, carryOne)
			g.t.AddTransition(carryOne, s, tm.One, tm.R, carryOne)
			g.t.AddTransition(carryMark, s, tm.Marked, tm.R, carryOne)
		}
	}

	return g.emitRewindToStart(done)
}

// emitRestoreRegion rewinds to the start of the tape, navigates to
// region, and sweeps its data converting every marked tally back to an
// unmarked one, restoring the VM contract's no-residual-marks invariant.
// Grounded on hlcompiler.cpp's EmitRestoreRegion.
func (g *CodeGen) emitRestoreRegion(entry tm.State, region int) tm.State {
	atStart := g.emitRewindToStart(entry)
	cur := g.navigateToRegion(atStart, region)

	sweep := g.newState("rst_sweep")
	g.connect(cur, sweep)

	done := g.newState("rst_done")
	for _, s := range g.alphabet {
		switch s {
		case tm.Marked:
			g.t.AddTransition(sweep, s, tm.One, tm.R, sweep)
		case tm.One:
			g.t.AddTransition(sweep, s, s, tm.R, sweep)
		default:
			g.t.AddTransition(sweep, s, s, tm.S, done)
		}
	}

	return g.emitRewindToStart(done)
}

// emitCompareEqual tests whether regA and regB hold the same tally count
// via one-to-one pairing: mark an unmarked 1 in A, then mark one in B; if
// A exhausts first with B not yet exhausted on the matching pass, or B
// exhausts before A, they differ; if both exhaust together, they match.
// Both regions are restored (marks cleared) before branching either way,
// satisfying the VM contract regardless of outcome — this is the one
// primitive in the reference that already does this correctly; see
// DESIGN.md for the for-loop comparison primitive that had to be built
// to match this contract rather than the reference's leakier sibling.
// Grounded on hlcompiler.cpp's EmitCompareEqual.
func (g *CodeGen) emitCompareEqual(entry tm.State, regA, regB int, ifEq, ifNeq tm.State) {
	restoreEq := g.newState("ceq_req")
	restoreNeq := g.newState("ceq_rneq")
	aDone := g.newState("ceq_adone")
	findB := g.newState("ceq_fb")

	inA := g.navigateToRegion(entry, regA)
	for _, s := range g.alphabet {
		switch s {
		case tm.One:
			g.t.AddTransition(inA, s, tm.Marked, tm.S, findB)
		case tm.Marked:
			g.t.AddTransition(inA, s, s, tm.R, inA)
		default:
			g.t.AddTransition(inA, s, s, tm.S, aDone)
		}
	}

	rwB := g.emitRewindToStart(findB)
	inB := g.navigateToRegion(rwB, regB)
	backToA := g.newState("ceq_back")
	for _, s := range g.alphabet {
		switch s {
		case tm.One:
			g.t.AddTransition(inB, s, tm.Marked, tm.S, backToA)
		case tm.Marked:
			g.t.AddTransition(inB, s, s, tm.R, inB)
		default:
			g.t.AddTransition(inB, s, s, tm.S, restoreNeq)
		}
	}

	rwA := g.emitRewindToStart(backToA)
	inA2 := g.navigateToRegion(rwA, regA)
	for _, s := range g.alphabet {
		switch s {
		case tm.One:
			g.t.AddTransition(inA2, s, tm.Marked, tm.S, findB)
		case tm.Marked:
			g.t.AddTransition(inA2, s, s, tm.R, inA2)
		default:
			g.t.AddTransition(inA2, s, s, tm.S, aDone)
		}
	}

	rwChk := g.emitRewindToStart(aDone)
	inBChk := g.navigateToRegion(rwChk, regB)
	for _, s := range g.alphabet {
		switch s {
		case tm.One:
			g.t.AddTransition(inBChk, s, s, tm.S, restoreNeq)
		case tm.Marked:
			g.t.AddTransition(inBChk, s, s, tm.R, inBChk)
		default:
			g.t.AddTransition(inBChk, s, s, tm.S, restoreEq)
		}
	}

	afterRaEq := g.emitRestoreRegion(restoreEq, regA)
	afterRbEq := g.emitRestoreRegion(afterRaEq, regB)
	g.joinUnset(afterRbEq, ifEq)

	afterRaNeq := g.emitRestoreRegion(restoreNeq, regA)
	afterRbNeq := g.emitRestoreRegion(afterRaNeq, regB)
	g.joinUnset(afterRbNeq, ifNeq)
}

// emitCompareLE tests |regA| <= |regB| by marking one 1 in A then one in
// B, repeatedly: if A exhausts, A <= B; if B exhausts first, A > B. Both
// regions are restored before branching in both cases — the for loop's
// bound check needs this ordered comparison rather than equality, and
// (unlike hlcompiler.cpp's leaky EmitCompareRegionToRegion) restores both
// regions before branching, per DESIGN.md's documented deviation.
func (g *CodeGen) emitCompareLE(entry tm.State, regA, regB int, ifLE, ifGT tm.State) {
	restoreLE := g.newState("cle_rle")
	restoreGT := g.newState("cle_rgt")
	findB := g.newState("cle_fb")

	inA := g.navigateToRegion(entry, regA)
	for _, s := range g.alphabet {
		switch s {
		case tm.One:
			g.t.AddTransition(inA, s, tm.Marked, tm.S, findB)
		case tm.Marked:
			g.t.AddTransition(inA, s, s, tm.R, inA)
		default:
			g.t.AddTransition(inA, s, s, tm.S, restoreLE)
		}
	}

	rwB := g.emitRewindToStart(findB)
	inB := g.navigateToRegion(rwB, regB)
	backToA := g.newState("cle_back")
	for _, s := range g.alphabet {
		switch s {
		case tm.One:
			g.t.AddTransition(inB, s, tm.Marked, tm.S, backToA)
		case tm.Marked:
			g.t.AddTransition(inB, s, s, tm.R, inB)
		default:
			g.t.AddTransition(inB, s, s, tm.S, restoreGT)
		}
	}

	rwA := g.emitRewindToStart(backToA)
	inA2 := g.navigateToRegion(rwA, regA)
	for _, s := range g.alphabet {
		switch s {
		case tm.One:
			g.t.AddTransition(inA2, s, tm.Marked, tm.S, findB)
		case tm.Marked:
			g.t.AddTransition(inA2, s, s, tm.R, inA2)
		default:
			g.t.AddTransition(inA2, s, s, tm.S, restoreLE)
		}
	}

	afterRaLE := g.emitRestoreRegion(restoreLE, regA)
	afterRbLE := g.emitRestoreRegion(afterRaLE, regB)
	g.joinUnset(afterRbLE, ifLE)

	afterRaGT := g.emitRestoreRegion(restoreGT, regA)
	afterRbGT := g.emitRestoreRegion(afterRaGT, regB)
	g.joinUnset(afterRbGT, ifGT)
}

// emitAppendNonDestructive copies src's tally count onto dst by finding
// an unmarked 1 in src, marking it, inserting a 1 into dst, rewinding,
// and repeating, until src exhausts; src's marks are then restored so it
// is left exactly as it was. Grounded on hlcompiler.cpp's
// EmitAppendNonDestructive.
func (g *CodeGen) emitAppendNonDestructive(entry tm.State, src, dst int) tm.State {
	loopStart := g.newState("appnd_loop")
	g.connect(entry, loopStart)

	findSrc := g.navigateToRegion(loopStart, src)

	insert := g.newState("appnd_ins")
	srcDone := g.newState("appnd_done")
	for _, s := range g.alphabet {
		switch s {
		case tm.One:
			g.t.AddTransition(findSrc, s, tm.Marked, tm.S, insert)
		case tm.Marked:
			g.t.AddTransition(findSrc, s, s, tm.R, findSrc)
		default:
			g.t.AddTransition(findSrc, s, s, tm.S, srcDone)
		}
	}

	preInsert := g.emitRewindToStart(insert)
	afterInsert := g.emitInsertInRegion(preInsert, dst)
	g.joinUnset(afterInsert, loopStart)

	preRestore := g.emitRewindToStart(srcDone)
	return g.emitRestoreRegion(preRestore, src)
}

// emitLiteral writes n consecutive tally marks starting at the current
// end of the tape (used to initialize a let-declared variable to an
// integer literal). n == 0 is a no-op: an empty region needs nothing
// written.
func (g *CodeGen) emitLiteral(entry tm.State, n int) tm.State {
	if n == 0 {
		return entry
	}
	current := entry
	for i := 0; i < n; i++ {
		next := g.newState("lit")
		g.t.AddTransition(current, tm.Blank, tm.One, tm.R, next)
		for _, s := range g.alphabet {
			if s != tm.Blank {
				g.t.AddTransition(current, s, s, tm.R, current)
			}
		}
		current = next
	}
	return current
}
