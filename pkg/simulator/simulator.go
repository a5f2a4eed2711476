// Package simulator is a deterministic, one-step-at-a-time executor for a
// compiled tm.TM. It is a pure function of (machine, input, step budget):
// no timeouts, no background work, nothing shared across runs.
package simulator

import (
	"strings"

	"github.com/smasonuk/tmc/pkg/tm"
)

// DefaultMaxSteps is used when a caller doesn't supply its own step budget.
const DefaultMaxSteps = 1_000_000

// Config is the runtime state of a TM at a point in time: a tape,
// extended rightward with blanks as needed, a head index, and a state.
type Config struct {
	Tape  []tm.Symbol
	Head  int
	State tm.State
}

// RunResult is the outcome of running a machine to completion or to its
// step budget, whichever comes first.
type RunResult struct {
	Accepted  bool
	Steps     int
	FinalTape string
	HitLimit  bool
}

// Simulator borrows a TM immutably and owns its own configuration, which
// it rebuilds on every Reset. Two Simulators over the same TM never
// interfere with each other.
type Simulator struct {
	tm       *tm.TM
	maxSteps int

	tape    []tm.Symbol
	head    int
	state   tm.State
	steps   int
	halted  bool
}

// New returns a Simulator for m with the given step budget. maxSteps <= 0
// is replaced by DefaultMaxSteps.
func New(m *tm.TM, maxSteps int) *Simulator {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Simulator{tm: m, maxSteps: maxSteps}
}

// Reset loads input onto a fresh tape starting at cell 0 and resets the
// head, state, step counter, and halted flag. An empty input yields a
// single-blank tape, per the simulator's empty-input boundary behavior.
func (s *Simulator) Reset(input string) {
	s.tape = s.tape[:0]
	for _, r := range input {
		s.tape = append(s.tape, tm.Symbol(r))
	}
	if len(s.tape) == 0 {
		s.tape = append(s.tape, tm.Blank)
	}
	s.head = 0
	s.state = s.tm.Start
	s.steps = 0
	s.halted = false
}

// Halted reports whether the machine has stopped (reached accept, reject,
// or an implicit reject from a missing transition).
func (s *Simulator) Halted() bool { return s.halted }

// Accepted reports whether the machine halted in the accept state.
func (s *Simulator) Accepted() bool { return s.halted && s.state == s.tm.Accept }

// Steps returns the number of transitions executed so far.
func (s *Simulator) Steps() int { return s.steps }

// CurrentConfig snapshots the simulator's configuration. The returned tape
// is a copy; mutating it has no effect on the simulator.
func (s *Simulator) CurrentConfig() Config {
	tape := make([]tm.Symbol, len(s.tape))
	copy(tape, s.tape)
	return Config{Tape: tape, Head: s.head, State: s.state}
}

// currentSymbol reads the tape at the head, yielding blank for any cell
// past the materialized tape length.
func (s *Simulator) currentSymbol() tm.Symbol {
	if s.head >= 0 && s.head < len(s.tape) {
		return s.tape[s.head]
	}
	return tm.Blank
}

// Step executes a single transition and reports whether the machine is
// still running afterward (false means halted). Calling Step on an
// already-halted simulator is a no-op that returns false.
//
// Step semantics, in order: check for a halt state; read the current
// symbol; look up (state, read), falling back to the wildcard read; on a
// missing transition, treat it as an implicit reject (fatal-but-soft, no
// panic); clamp a negative head to 0 (the left-bounded-tape fixpoint);
// extend the tape rightward with blanks as needed; write, move, and
// transition; halt if the new state is accept or reject.
func (s *Simulator) Step() bool {
	if s.halted {
		return false
	}
	if s.state == s.tm.Accept || s.state == s.tm.Reject {
		s.halted = true
		return false
	}

	read := s.currentSymbol()

	tr, ok := s.tm.Lookup(s.state, read)
	if !ok {
		s.state = s.tm.Reject
		s.halted = true
		return false
	}

	if s.head < 0 {
		s.head = 0
	}
	for s.head >= len(s.tape) {
		s.tape = append(s.tape, tm.Blank)
	}

	write := tr.Write
	if write == tm.Wildcard {
		write = read
	}
	s.tape[s.head] = write

	switch tr.Dir {
	case tm.L:
		s.head--
		if s.head < 0 {
			s.head = 0
		}
	case tm.R:
		s.head++
	case tm.S:
	}

	s.state = tr.Next
	s.steps++

	if s.state == s.tm.Accept || s.state == s.tm.Reject {
		s.halted = true
	}

	return !s.halted
}

// Run resets the simulator on input, then steps until halted or the step
// budget is exhausted, whichever comes first. It is idempotent: calling
// Run twice on the same Simulator with the same input yields identical
// results, since Reset discards all prior state.
func (s *Simulator) Run(input string) RunResult {
	s.Reset(input)

	for !s.halted && s.steps < s.maxSteps {
		s.Step()
	}

	return RunResult{
		Accepted:  s.Accepted(),
		Steps:     s.steps,
		FinalTape: trimBlanks(s.tape),
		HitLimit:  s.steps >= s.maxSteps && !s.halted,
	}
}

// trimBlanks renders tape with leading and trailing blanks removed.
func trimBlanks(tape []tm.Symbol) string {
	left, right := 0, len(tape)-1
	for left < len(tape) && tape[left] == tm.Blank {
		left++
	}
	for right >= 0 && tape[right] == tm.Blank {
		right--
	}
	if left > right {
		return ""
	}
	var b strings.Builder
	for _, r := range tape[left : right+1] {
		b.WriteRune(rune(r))
	}
	return b.String()
}
