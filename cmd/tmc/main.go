// Command tmc is the Turing Machine Compiler CLI: compile, run, validate,
// export, and inspect high-level DSL programs, and watch one execute live.
// Grounded on jam-duna-jamduna's cmd/wallet-demo cobra layout (one
// *cobra.Command var per subcommand, flags bound via cmd.Flags().XVar,
// rootCmd.AddCommand, rootCmd.Execute with os.Exit(1) on error), replacing
// smasonuk-sicpu's hand-rolled flag parsing in its own cmd/ccompiler and
// cmd/console.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/smasonuk/tmc/internal/asttree"
	"github.com/smasonuk/tmc/pkg/ast"
	"github.com/smasonuk/tmc/pkg/compiler"
	"github.com/smasonuk/tmc/pkg/export"
	"github.com/smasonuk/tmc/pkg/parser"
	"github.com/smasonuk/tmc/pkg/simulator"
	"github.com/smasonuk/tmc/pkg/store"
	"github.com/smasonuk/tmc/pkg/tm"
	"github.com/smasonuk/tmc/pkg/utils"
	"github.com/smasonuk/tmc/pkg/visualize"
)

var (
	storeDir string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tmc",
	Short: "Turing Machine Compiler",
	Long:  "tmc compiles a high-level DSL onto a single-tape deterministic Turing machine and simulates it.",
}

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&storeDir, "store-dir", ".tmc-store", "directory for persisted compiled programs and run history")

	rootCmd.AddCommand(compileCmd, runCmd, validateCmd, exportCmd, inspectCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseSource reads and parses a DSL source file into a Program. The path
// is resolved to an absolute path first, the same GetPathInfo step
// smasonuk-sicpu's cmd/desktop uses before reading a source file, so
// relative paths behave the same regardless of the CLI's own working
// directory.
func parseSource(path string) (*ast.Program, error) {
	fullPath, _, err := utils.GetPathInfo(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %s: %w", path, err)
	}
	src, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	prog, err := parser.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return prog, nil
}

func parseAndCompile(path string) (*tm.TM, error) {
	prog, err := parseSource(path)
	if err != nil {
		return nil, err
	}
	machine, err := compiler.Compile(prog)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}
	return machine, nil
}

func openStore() (*store.Store, error) {
	s := store.New()
	if err := s.LoadFrom(storeDir); err != nil {
		return nil, fmt.Errorf("loading store %s: %w", storeDir, err)
	}
	return s, nil
}

// --- compile ---

var (
	compileOut     string
	compileSaveAs  string
	compileVerbose bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <source.tmdsl>",
	Short: "Compile a DSL program to a Turing machine and export it as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		machine, err := parseAndCompile(path)
		if err != nil {
			return err
		}

		doc, err := export.Marshal(machine)
		if err != nil {
			return fmt.Errorf("exporting compiled machine: %w", err)
		}

		if compileOut == "" {
			fmt.Print(string(doc))
		} else {
			if err := os.WriteFile(compileOut, doc, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", compileOut, err)
			}
			logger.Info("wrote compiled machine", "path", compileOut)
		}

		if compileSaveAs != "" {
			s, err := openStore()
			if err != nil {
				return err
			}
			if err := s.SaveCompiled(compileSaveAs, doc); err != nil {
				return fmt.Errorf("saving %q to store: %w", compileSaveAs, err)
			}
			if err := s.PersistTo(storeDir); err != nil {
				return fmt.Errorf("persisting store: %w", err)
			}
			logger.Info("saved compiled machine to store", "name", compileSaveAs, "dir", storeDir)
		}

		if compileVerbose {
			fmt.Fprintf(os.Stderr, "Stats:\n  States: %d\n  Tape alphabet: %d\n  Transitions: %d\n",
				len(machine.AllStates()), len(machine.AllTapeSymbols()), machine.TransitionCount())
		}

		return nil
	},
}

func init() {
	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "", "write exported YAML to this file instead of stdout")
	compileCmd.Flags().StringVar(&compileSaveAs, "save", "", "also persist the compiled machine to the store under this name")
	compileCmd.Flags().BoolVarP(&compileVerbose, "verbose", "v", false, "print state/alphabet/transition counts to stderr")
}

// --- run ---

var (
	runInput    string
	runMaxSteps int
	runSaveAs   string
)

var runCmd = &cobra.Command{
	Use:   "run <source.tmdsl>",
	Short: "Run a compiled DSL program on an input string",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		machine, err := parseAndCompile(path)
		if err != nil {
			return err
		}

		sim := simulator.New(machine, runMaxSteps)
		result := sim.Run(runInput)

		fmt.Printf("Input: %q\n", runInput)
		status := "REJECT"
		if result.Accepted {
			status = "ACCEPT"
		}
		fmt.Printf("Result: %s\n", status)
		fmt.Printf("Steps: %d\n", result.Steps)
		if result.FinalTape != "" {
			fmt.Printf("Final tape: %s\n", result.FinalTape)
		}
		if result.HitLimit {
			fmt.Println("WARNING: hit step limit")
		}

		if runSaveAs != "" {
			s, err := openStore()
			if err != nil {
				return err
			}
			if err := s.RecordRun(runSaveAs, store.RunRecord{
				Input:     runInput,
				Accepted:  result.Accepted,
				Steps:     result.Steps,
				HitLimit:  result.HitLimit,
				FinalTape: result.FinalTape,
			}); err != nil {
				return fmt.Errorf("recording run for %q: %w", runSaveAs, err)
			}
			if err := s.PersistTo(storeDir); err != nil {
				return fmt.Errorf("persisting store: %w", err)
			}
		}

		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "input string to run the machine on")
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", simulator.DefaultMaxSteps, "simulator step budget")
	runCmd.Flags().StringVar(&runSaveAs, "save", "", "record this run in the store's run history under this name")
}

// --- validate ---

var validateExported bool

var validateCmd = &cobra.Command{
	Use:   "validate <source.tmdsl|export.yaml>",
	Short: "Check that a program compiles (or an exported machine parses) to a valid Turing machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		var machine *tm.TM
		if validateExported {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			machine, err = export.Unmarshal(data)
			if err != nil {
				return fmt.Errorf("parsing exported machine %s: %w", path, err)
			}
		} else {
			m, err := parseAndCompile(path)
			if err != nil {
				return err
			}
			machine = m
		}

		if err := machine.Validate(); err != nil {
			return fmt.Errorf("invalid machine: %w", err)
		}

		fmt.Println("OK")
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateExported, "exported", false, "treat the file as an already-exported YAML document rather than DSL source")
}

// --- export ---

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <source.tmdsl>",
	Short: "Compile a DSL program and print its exported YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		machine, err := parseAndCompile(args[0])
		if err != nil {
			return err
		}
		doc, err := export.Marshal(machine)
		if err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		if exportOut == "" {
			fmt.Print(string(doc))
			return nil
		}
		if err := os.WriteFile(exportOut, doc, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", exportOut, err)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write to this file instead of stdout")
}

// --- inspect ---

var (
	inspectTree bool
	inspectTM   bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <source.tmdsl>",
	Short: "Show a parsed program's AST, or (with --tm) its lowered machine's reachable-state graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		prog, err := parseSource(path)
		if err != nil {
			return err
		}

		if !inspectTM {
			var t treeprint.Tree
			if inspectTree {
				t = asttree.Program(prog)
			}
			if t != nil {
				fmt.Println(t.String())
				return nil
			}
			fmt.Printf("program: %d top-level statements, alphabet=%v, markers=%v\n",
				len(prog.Body), prog.InputAlphabet, prog.Markers)
			return nil
		}

		machine, err := compiler.Compile(prog)
		if err != nil {
			return fmt.Errorf("compiling %s: %w", path, err)
		}
		if inspectTree {
			fmt.Println(asttree.Machine(machine).String())
			return nil
		}
		fmt.Printf("machine: %d states, %d tape symbols, %d transitions\n",
			len(machine.AllStates()), len(machine.AllTapeSymbols()), machine.TransitionCount())
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectTree, "tree", false, "render as a tree instead of a one-line summary")
	inspectCmd.Flags().BoolVar(&inspectTM, "tm", false, "inspect the lowered machine instead of the parsed AST")
}

// --- watch ---

var watchInput string

var watchCmd = &cobra.Command{
	Use:   "watch <source.tmdsl>",
	Short: "Open a live tape/head/state view of the running machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		machine, err := parseAndCompile(path)
		if err != nil {
			return err
		}
		sim := simulator.New(machine, simulator.DefaultMaxSteps)
		return visualize.Run(sim, watchInput, "tmc watch: "+path)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchInput, "input", "i", "", "input string to run the machine on")
}
