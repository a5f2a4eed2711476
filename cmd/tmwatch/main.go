// Command tmwatch opens a live tape/head/state view of a compiled DSL
// program, stepping it automatically at the screen's frame rate. Grounded
// on smasonuk-sicpu's cmd/desktop: a minimal flag-parsing main that loads
// a source file, compiles it, and hands the result to an ebiten Game.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/smasonuk/tmc/pkg/compiler"
	"github.com/smasonuk/tmc/pkg/parser"
	"github.com/smasonuk/tmc/pkg/simulator"
	"github.com/smasonuk/tmc/pkg/utils"
	"github.com/smasonuk/tmc/pkg/visualize"
)

func main() {
	input := flag.String("input", "", "input string to run the machine on")
	maxSteps := flag.Int("max-steps", simulator.DefaultMaxSteps, "simulator step budget")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: tmwatch [-input STR] [-max-steps N] <source.tmdsl>")
		os.Exit(1)
	}
	sourcePath := flag.Arg(0)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	fullPath, _, err := utils.GetPathInfo(sourcePath)
	if err != nil {
		logger.Error("resolving source path", "path", sourcePath, "error", err)
		os.Exit(1)
	}
	src, err := os.ReadFile(fullPath)
	if err != nil {
		logger.Error("reading source file", "path", sourcePath, "error", err)
		os.Exit(1)
	}

	prog, err := parser.Parse(string(src))
	if err != nil {
		logger.Error("parsing source", "path", sourcePath, "error", err)
		os.Exit(1)
	}

	machine, err := compiler.Compile(prog)
	if err != nil {
		logger.Error("compiling program", "path", sourcePath, "error", err)
		os.Exit(1)
	}

	sim := simulator.New(machine, *maxSteps)
	if err := visualize.Run(sim, *input, "tmwatch: "+sourcePath); err != nil {
		logger.Error("running visualizer", "error", err)
		os.Exit(1)
	}
}
