package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smasonuk/tmc/pkg/ast"
	"github.com/smasonuk/tmc/pkg/compiler"
	"github.com/smasonuk/tmc/pkg/parser"
	"github.com/smasonuk/tmc/pkg/simulator"
)

const maxSteps = 200_000

func mustCompile(t *testing.T, prog *ast.Program) *simulator.Simulator {
	t.Helper()
	machine, err := compiler.Compile(prog)
	require.NoError(t, err)
	return simulator.New(machine, maxSteps)
}

// TestLetLiteralThenAccept exercises emitLiteral and the basic let/accept
// lowering: the program ignores its input entirely and always accepts.
func TestLetLiteralThenAccept(t *testing.T) {
	prog := &ast.Program{
		InputAlphabet: []rune{'a'},
		Body: []ast.Stmt{
			ast.LetStmt{Name: "x", Value: ast.IntLit{Value: 3}},
			ast.AcceptStmt{},
		},
	}
	sim := mustCompile(t, prog)

	for _, in := range []string{"", "a", "aaaa"} {
		res := sim.Run(in)
		assert.Truef(t, res.Accepted, "input %q: expected accept, got reject (steps=%d, hitLimit=%v)", in, res.Steps, res.HitLimit)
		assert.False(t, res.HitLimit)
	}
}

// anBnProgram recognizes the classic a^n b^n language: it rejects any 'a'
// that follows a 'b' (the a*b* shape check), then lets n = count(a) and
// accepts iff count(b) == n.
func anBnProgram() *ast.Program {
	return &ast.Program{
		InputAlphabet: []rune{'a', 'b'},
		Body: []ast.Stmt{
			ast.ScanStmt{Dir: "right", Symbols: []rune{'b', '_'}},
			ast.IfCurrentStmt{Branches: []ast.IfCurrentBranch{{Symbol: 'b', Body: []ast.Stmt{
				ast.ScanStmt{Dir: "right", Symbols: []rune{'a', '_'}},
				ast.IfCurrentStmt{Branches: []ast.IfCurrentBranch{{Symbol: 'a', Body: []ast.Stmt{ast.RejectStmt{}}}}},
			}}}},
			ast.LetStmt{Name: "n", Value: ast.CountExpr{Symbol: 'a'}},
			ast.IfStmt{
				Cond: ast.BinExpr{
					Op:    ast.OpEq,
					Left:  ast.CountExpr{Symbol: 'b'},
					Right: ast.VarRef{Name: "n"},
				},
				Then: []ast.Stmt{ast.AcceptStmt{}},
				Else: []ast.Stmt{ast.RejectStmt{}},
			},
		},
	}
}

// TestCountEqualityAnBn checks anBnProgram's count(sym) == var comparison
// together with its shape check.
func TestCountEqualityAnBn(t *testing.T) {
	sim := mustCompile(t, anBnProgram())

	accept := []string{"", "ab", "aabb", "aaabbb", "aaaabbbb"}
	reject := []string{"a", "b", "aab", "abb", "ba", "aabbb", "aaabb"}

	for _, in := range accept {
		res := sim.Run(in)
		assert.Truef(t, res.Accepted, "input %q: expected accept", in)
	}
	for _, in := range reject {
		res := sim.Run(in)
		assert.Falsef(t, res.Accepted, "input %q: expected reject", in)
	}
}

// TestCountEqualityIsRepeatable runs the same compiled machine against many
// inputs via separate Run calls, guarding against state leaking between
// runs (each Run starts from Reset).
func TestCountEqualityIsRepeatable(t *testing.T) {
	sim := mustCompile(t, anBnProgram())

	for i := 0; i < 3; i++ {
		res := sim.Run("aaabbb")
		require.True(t, res.Accepted)
		res = sim.Run("aab")
		require.False(t, res.Accepted)
	}
}

// TestIfEqVariableComparison declares two variables from independent counts
// and branches on whether they hold equal tallies.
func TestIfEqVariableComparison(t *testing.T) {
	prog := &ast.Program{
		InputAlphabet: []rune{'a', 'b'},
		Body: []ast.Stmt{
			ast.LetStmt{Name: "na", Value: ast.CountExpr{Symbol: 'a'}},
			ast.LetStmt{Name: "nb", Value: ast.CountExpr{Symbol: 'b'}},
			ast.IfEqStmt{
				Left:  "na",
				Right: "nb",
				Then:  []ast.Stmt{ast.AcceptStmt{}},
				Else:  []ast.Stmt{ast.RejectStmt{}},
			},
		},
	}
	sim := mustCompile(t, prog)

	for _, in := range []string{"", "ab", "aabb", "ba", "abab"} {
		res := sim.Run(in)
		assert.Truef(t, res.Accepted, "input %q: expected equal counts to accept", in)
	}
	for _, in := range []string{"a", "aab", "abb", "aaabb"} {
		res := sim.Run(in)
		assert.Falsef(t, res.Accepted, "input %q: expected unequal counts to reject", in)
	}
}

// TestAppendDoublesCount builds n from count(a), appends n onto itself via
// a fresh accumulator, and checks the result equals count(b) when the input
// is exactly n a's followed by 2n b's.
func TestAppendDoublesCount(t *testing.T) {
	prog := &ast.Program{
		InputAlphabet: []rune{'a', 'b'},
		Body: []ast.Stmt{
			ast.LetStmt{Name: "n", Value: ast.CountExpr{Symbol: 'a'}},
			ast.LetStmt{Name: "double", Value: ast.VarRef{Name: "n"}},
			ast.AppendStmt{Src: "n", Dest: "double"},
			ast.IfStmt{
				Cond: ast.BinExpr{
					Op:    ast.OpEq,
					Left:  ast.CountExpr{Symbol: 'b'},
					Right: ast.VarRef{Name: "double"},
				},
				Then: []ast.Stmt{ast.AcceptStmt{}},
				Else: []ast.Stmt{ast.RejectStmt{}},
			},
		},
	}
	sim := mustCompile(t, prog)

	for _, in := range []string{"", "abb", "aabbbb", "aaabbbbbb"} {
		res := sim.Run(in)
		assert.Truef(t, res.Accepted, "input %q: expected |b| == 2|a| to accept", in)
	}
	for _, in := range []string{"ab", "aabb", "aaabbbbb"} {
		res := sim.Run(in)
		assert.Falsef(t, res.Accepted, "input %q: expected |b| != 2|a| to reject", in)
	}
}

// TestForLoopCountsUpToBound uses a for loop to build a tally region one
// increment per iteration and checks the result via count equality,
// exercising emitInsertInRegion's counter increment and emitCompareLE's
// bound check together.
func TestForLoopCountsUpToBound(t *testing.T) {
	prog := &ast.Program{
		InputAlphabet: []rune{'a'},
		Body: []ast.Stmt{
			ast.LetStmt{Name: "n", Value: ast.CountExpr{Symbol: 'a'}},
			ast.LetStmt{Name: "total", Value: ast.IntLit{Value: 0}},
			ast.ForStmt{
				Var:   "i",
				Start: ast.IntLit{Value: 1},
				End:   ast.VarRef{Name: "n"},
				Body: []ast.Stmt{
					ast.IncStmt{Name: "total"},
				},
			},
			ast.IfEqStmt{
				Left:  "total",
				Right: "n",
				Then:  []ast.Stmt{ast.AcceptStmt{}},
				Else:  []ast.Stmt{ast.RejectStmt{}},
			},
		},
	}
	sim := mustCompile(t, prog)

	for _, in := range []string{"", "a", "aaa", "aaaaa"} {
		res := sim.Run(in)
		assert.Truef(t, res.Accepted, "input %q: for-loop should run exactly |a| times", in)
		assert.False(t, res.HitLimit, "input %q", in)
	}
}

// TestImperativeScanWriteLoopBreak checks the imperative primitives
// directly: scan to the end of the input, write a marker, rewind to the
// left end, then use a bare loop+break to walk right until the marker.
func TestImperativeScanWriteLoopBreak(t *testing.T) {
	prog := &ast.Program{
		InputAlphabet: []rune{'a'},
		Markers:       []rune{'$'},
		Body: []ast.Stmt{
			ast.ScanStmt{Dir: "right", Symbols: []rune{'_'}},
			ast.WriteStmt{Symbol: '$'},
			ast.RewindStmt{Dir: "left"},
			ast.LoopStmt{
				Body: []ast.Stmt{
					ast.IfCurrentStmt{
						Branches: []ast.IfCurrentBranch{
							{Symbol: '$', Body: []ast.Stmt{ast.BreakStmt{}}},
						},
						Else: []ast.Stmt{ast.MoveStmt{Dir: "right"}},
					},
				},
			},
			ast.AcceptStmt{},
		},
	}
	sim := mustCompile(t, prog)

	res := sim.Run("aaa")
	require.True(t, res.Accepted)
	assert.Contains(t, res.FinalTape, "$")
}

// TestUndeclaredVariableIsCompileError checks that getVar's refusal to
// auto-declare surfaces as an error from Compile rather than silently
// aliasing region 0.
func TestUndeclaredVariableIsCompileError(t *testing.T) {
	prog := &ast.Program{
		InputAlphabet: []rune{'a'},
		Body: []ast.Stmt{
			ast.IncStmt{Name: "never_declared"},
			ast.AcceptStmt{},
		},
	}
	_, err := compiler.Compile(prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never_declared")
}

// TestBreakOutsideLoopIsCompileError checks compileBreak's own guard.
func TestBreakOutsideLoopIsCompileError(t *testing.T) {
	prog := &ast.Program{
		InputAlphabet: []rune{'a'},
		Body: []ast.Stmt{
			ast.BreakStmt{},
		},
	}
	_, err := compiler.Compile(prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "break")
}

// TestUnsupportedIfConditionIsCompileError checks that an if condition
// shaped outside count(sym) == var is rejected rather than silently
// mis-lowered.
func TestUnsupportedIfConditionIsCompileError(t *testing.T) {
	prog := &ast.Program{
		InputAlphabet: []rune{'a'},
		Body: []ast.Stmt{
			ast.LetStmt{Name: "n", Value: ast.CountExpr{Symbol: 'a'}},
			ast.IfStmt{
				Cond: ast.BinExpr{
					Op:    ast.OpLt,
					Left:  ast.CountExpr{Symbol: 'a'},
					Right: ast.VarRef{Name: "n"},
				},
				Then: []ast.Stmt{ast.AcceptStmt{}},
			},
		},
	}
	_, err := compiler.Compile(prog)
	require.Error(t, err)
}

// TestIfCountEqualsVarStopsAtOwnRegionBoundary pins a historical overscan
// bug in compileIf's count(sym) == var comparison: an earlier draft
// scanned past the checked variable's own region boundary into whatever
// region came after it, so a second variable still holding an unrelated
// nonzero tally could make the comparison falsely reject. n is declared
// before extra, so extra's region sits immediately after n's on the
// tape, and extra is given a nonzero value that has nothing to do with
// the comparison being tested.
func TestIfCountEqualsVarStopsAtOwnRegionBoundary(t *testing.T) {
	prog := &ast.Program{
		InputAlphabet: []rune{'a', 'b'},
		Body: []ast.Stmt{
			ast.LetStmt{Name: "n", Value: ast.CountExpr{Symbol: 'a'}},
			ast.LetStmt{Name: "extra", Value: ast.IntLit{Value: 5}},
			ast.IfStmt{
				Cond: ast.BinExpr{
					Op:    ast.OpEq,
					Left:  ast.CountExpr{Symbol: 'a'},
					Right: ast.VarRef{Name: "n"},
				},
				Then: []ast.Stmt{ast.AcceptStmt{}},
				Else: []ast.Stmt{ast.RejectStmt{}},
			},
		},
	}
	sim := mustCompile(t, prog)

	for _, in := range []string{"", "a", "aa", "aaa", "b", "ab", "aab", "bab"} {
		res := sim.Run(in)
		assert.Truef(t, res.Accepted, "input %q: count(a) == n should hold regardless of extra's unrelated nonzero tally", in)
		assert.False(t, res.HitLimit, "input %q", in)
	}
}

// --- end-to-end DSL scenarios, parsed from source text and checked
// against a brute-force oracle over every string of length 0..8 on {a,b} ---

func mustParseAndCompile(t *testing.T, src string) *simulator.Simulator {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	machine, err := compiler.Compile(prog)
	require.NoError(t, err)
	return simulator.New(machine, maxSteps)
}

func stringsOfLength(n int) []string {
	if n == 0 {
		return []string{""}
	}
	var out []string
	for _, suffix := range stringsOfLength(n - 1) {
		out = append(out, "a"+suffix, "b"+suffix)
	}
	return out
}

func allStringsUpTo(maxLen int) []string {
	var out []string
	for n := 0; n <= maxLen; n++ {
		out = append(out, stringsOfLength(n)...)
	}
	return out
}

func checkAgainstOracle(t *testing.T, sim *simulator.Simulator, oracle func(string) bool) {
	t.Helper()
	for _, in := range allStringsUpTo(8) {
		res := sim.Run(in)
		assert.Falsef(t, res.HitLimit, "input %q: hit step limit", in)
		if oracle(in) {
			assert.Truef(t, res.Accepted, "input %q: oracle says accept, machine rejected", in)
		} else {
			assert.Falsef(t, res.Accepted, "input %q: oracle says reject, machine accepted", in)
		}
	}
}

func oracleAnBn(s string) bool {
	i := 0
	for i < len(s) && s[i] == 'a' {
		i++
	}
	na := i
	j := i
	for j < len(s) && s[j] == 'b' {
		j++
	}
	nb := j - i
	return j == len(s) && na == nb
}

// TestScenarioAnBnFromSource compiles the a*b* shape check followed by
// `n=count(a); accept iff count(b)==n` from real DSL source and checks it
// against oracleAnBn for every string of length 0..8 over {a,b}.
func TestScenarioAnBnFromSource(t *testing.T) {
	const src = `
alphabet input: [a, b]
scan right for [b, _]
if b {
	scan right for [a, _]
	if a {
		reject
	}
}
n = count(a)
if count(b) == n {
	accept
}
reject
`
	sim := mustParseAndCompile(t, src)
	checkAgainstOracle(t, sim, oracleAnBn)
}

func oracleAStarBStar(s string) bool {
	i := 0
	for i < len(s) && s[i] == 'a' {
		i++
	}
	for i < len(s) && s[i] == 'b' {
		i++
	}
	return i == len(s)
}

// TestScenarioAStarBStarFromSource checks the structural a*b* shape
// (every a before every b) using scan/if-current rather than counting,
// against oracleAStarBStar for every string of length 0..8 over {a,b}.
func TestScenarioAStarBStarFromSource(t *testing.T) {
	const src = `
alphabet input: [a, b]
scan right for [b, _]
if b {
	scan right for [a, _]
	if a {
		reject
	}
}
accept
`
	sim := mustParseAndCompile(t, src)
	checkAgainstOracle(t, sim, oracleAStarBStar)
}

func oracleTriangular(s string) bool {
	if !oracleAStarBStar(s) {
		return false
	}
	na := strings.Count(s, "a")
	nb := strings.Count(s, "b")
	return nb == na*(na+1)/2
}

// TestScenarioTriangularFromSource combines the a*b* structural check
// with a loop that accumulates 1+2+...+n into a counter, accepting
// exactly the triangular-number language a^n b^(n(n+1)/2).
func TestScenarioTriangularFromSource(t *testing.T) {
	const src = `
alphabet input: [a, b]
scan right for [b, _]
if b {
	scan right for [a, _]
	if a {
		reject
	}
}
n = count(a)
m = count(b)
sum = 0
i = 0
z = 0
if n == z {
	if sum == m {
		accept
	}
	reject
}
loop {
	inc i
	append i -> sum
	if i == n {
		break
	}
}
if sum == m {
	accept
}
reject
`
	sim := mustParseAndCompile(t, src)
	checkAgainstOracle(t, sim, oracleTriangular)
}

func oracleStartsEndsWithA(s string) bool {
	return len(s) > 0 && s[0] == 'a' && s[len(s)-1] == 'a'
}

// TestScenarioStartsEndsWithAFromSource checks the first input symbol,
// scans to the end, steps back one cell, and checks the last symbol,
// accepting iff both are 'a' (which also rejects the empty string, since
// blank never matches the 'a' branch).
func TestScenarioStartsEndsWithAFromSource(t *testing.T) {
	const src = `
alphabet input: [a, b]
if a {
	scan right for [_]
	left
	if a {
		accept
	} else {
		reject
	}
} else {
	reject
}
`
	sim := mustParseAndCompile(t, src)
	checkAgainstOracle(t, sim, oracleStartsEndsWithA)
}

func oracleAlwaysAccept(s string) bool { return true }

// TestScenarioCountCopyEqualityFromSource builds two independent tallies
// from the same count(a) and checks them equal, which holds for every
// input: an always-accept program that still exercises the full
// count/compare pipeline twice over.
func TestScenarioCountCopyEqualityFromSource(t *testing.T) {
	const src = `
alphabet input: [a, b]
n = count(a)
m = count(a)
if n == m {
	accept
}
reject
`
	sim := mustParseAndCompile(t, src)
	checkAgainstOracle(t, sim, oracleAlwaysAccept)
}

func oracleDoublesB(s string) bool {
	na := strings.Count(s, "a")
	nb := strings.Count(s, "b")
	return nb == 2*na
}

// TestScenarioAppendDoublesFromSource builds n from count(a), appends n
// onto a fresh accumulator twice (non-destructively), and accepts iff
// count(b) equals the doubled accumulator.
func TestScenarioAppendDoublesFromSource(t *testing.T) {
	const src = `
alphabet input: [a, b]
n = count(a)
x = 0
append n -> x
append n -> x
if count(b) == x {
	accept
}
reject
`
	sim := mustParseAndCompile(t, src)
	checkAgainstOracle(t, sim, oracleDoublesB)
}
