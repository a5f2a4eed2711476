// Package asttree renders a parsed ast.Program, or a lowered tm.TM's
// reachable-state graph, as a treeprint.Tree for `tmc inspect --tree`.
// Grounded on the jam-duna pack's types/block_tree.go ToTree() pattern:
// build a treeprint.Tree and SetValue the node's own label; children with
// bodies of their own get an AddBranch sub-tree that is filled in
// recursively, and leaves are added with AddNode.
package asttree

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/smasonuk/tmc/pkg/ast"
	"github.com/smasonuk/tmc/pkg/tm"
)

// Program renders prog's statement body as a tree rooted at "program".
func Program(prog *ast.Program) treeprint.Tree {
	root := treeprint.New()
	root.SetValue(fmt.Sprintf("program (alphabet=%s)", runesToString(prog.InputAlphabet)))
	addStmts(root, prog.Body)
	return root
}

func runesToString(rs []rune) string {
	var b strings.Builder
	for i, r := range rs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func addStmts(parent treeprint.Tree, stmts []ast.Stmt) {
	for _, s := range stmts {
		addStmt(parent, s)
	}
}

// addStmt appends one child node per statement, recursing into any nested
// statement bodies (branches, loops, for-bodies) so the tree mirrors the
// program's actual nesting rather than flattening it.
func addStmt(parent treeprint.Tree, stmt ast.Stmt) {
	switch s := stmt.(type) {
	case ast.LetStmt:
		parent.AddNode(fmt.Sprintf("let %s = %s", s.Name, exprStr(s.Value)))
	case ast.AssignStmt:
		parent.AddNode(fmt.Sprintf("%s = %s", s.Name, exprStr(s.Value)))
	case ast.IncStmt:
		parent.AddNode(fmt.Sprintf("inc %s", s.Name))
	case ast.AppendStmt:
		parent.AddNode(fmt.Sprintf("append %s -> %s", s.Src, s.Dest))
	case ast.ForStmt:
		branch := parent.AddBranch(fmt.Sprintf("for %s in %s..%s", s.Var, exprStr(s.Start), exprStr(s.End)))
		addStmts(branch, s.Body)
	case ast.IfStmt:
		branch := parent.AddBranch(fmt.Sprintf("if %s", exprStr(s.Cond)))
		addStmts(branch.AddBranch("then"), s.Then)
		if len(s.Else) > 0 {
			addStmts(branch.AddBranch("else"), s.Else)
		}
	case ast.IfEqStmt:
		branch := parent.AddBranch(fmt.Sprintf("if %s == %s", s.Left, s.Right))
		addStmts(branch.AddBranch("then"), s.Then)
		if len(s.Else) > 0 {
			addStmts(branch.AddBranch("else"), s.Else)
		}
	case ast.ReturnStmt:
		parent.AddNode(fmt.Sprintf("return %s", exprStr(s.Value)))
	case ast.AcceptStmt:
		parent.AddNode("accept")
	case ast.RejectStmt:
		parent.AddNode("reject")
	case ast.ScanStmt:
		parent.AddNode(fmt.Sprintf("scan %s for %s", s.Dir, runesToString(s.Symbols)))
	case ast.WriteStmt:
		parent.AddNode(fmt.Sprintf("write %c", s.Symbol))
	case ast.MoveStmt:
		parent.AddNode(fmt.Sprintf("move %s", s.Dir))
	case ast.RewindStmt:
		parent.AddNode(fmt.Sprintf("rewind %s", s.Dir))
	case ast.LoopStmt:
		branch := parent.AddBranch("loop")
		addStmts(branch, s.Body)
	case ast.BreakStmt:
		parent.AddNode("break")
	case ast.IfCurrentStmt:
		branch := parent.AddBranch("if-current")
		for _, b := range s.Branches {
			addStmts(branch.AddBranch(fmt.Sprintf("== %c", b.Symbol)), b.Body)
		}
		if len(s.Else) > 0 {
			addStmts(branch.AddBranch("else"), s.Else)
		}
	default:
		parent.AddNode(fmt.Sprintf("<unknown %T>", stmt))
	}
}

func exprStr(e ast.Expr) string {
	switch v := e.(type) {
	case nil:
		return "<none>"
	case ast.IntLit:
		return fmt.Sprintf("%d", v.Value)
	case ast.VarRef:
		return v.Name
	case ast.CountExpr:
		return fmt.Sprintf("count(%c)", v.Symbol)
	case ast.BinExpr:
		return fmt.Sprintf("(%s %s %s)", exprStr(v.Left), v.Op, exprStr(v.Right))
	default:
		return fmt.Sprintf("<unknown %T>", e)
	}
}

// maxGraphDepth bounds how deep the reachable-state graph walk nests
// before it prints a "max depth reached" leaf instead of expanding
// further.
const maxGraphDepth = 12

// Machine renders machine's reachable-state graph from its start state,
// depth-first, following each state's outgoing transitions grouped by
// destination. A state already printed anywhere earlier in the walk is
// rendered as a leaf marked "(seen)" rather than re-expanded, so loops in
// the lowered TM terminate the walk instead of recursing forever.
func Machine(machine *tm.TM) treeprint.Tree {
	root := treeprint.New()
	root.SetValue(fmt.Sprintf("%s (accept=%s, reject=%s)", machine.Start, machine.Accept, machine.Reject))
	visited := map[tm.State]bool{machine.Start: true}
	addState(root, machine, machine.Start, visited, 0)
	return root
}

func addState(parent treeprint.Tree, machine *tm.TM, state tm.State, visited map[tm.State]bool, depth int) {
	if state == machine.Accept || state == machine.Reject {
		return
	}
	if depth >= maxGraphDepth {
		parent.AddNode("... (max depth reached)")
		return
	}

	children := map[tm.State][]tm.Symbol{}
	var order []tm.State
	for _, sym := range machine.OutgoingSymbols(state) {
		tr, ok := machine.Lookup(state, sym)
		if !ok {
			continue
		}
		if _, seen := children[tr.Next]; !seen {
			order = append(order, tr.Next)
		}
		children[tr.Next] = append(children[tr.Next], sym)
	}

	for _, next := range order {
		syms := children[next]
		symStrs := make([]string, len(syms))
		for i, s := range syms {
			symStrs[i] = string(rune(s))
		}
		label := fmt.Sprintf("%s [on %s]", next, strings.Join(symStrs, ","))
		if visited[next] {
			parent.AddNode(label + " (seen)")
			continue
		}
		visited[next] = true
		branch := parent.AddBranch(label)
		addState(branch, machine, next, visited, depth+1)
	}
}
