// Package export renders a compiled tm.TM as a deterministic YAML-like
// textual document and parses it back. Grounded on
// original_source/src/codegen.cpp's ToYAML: the same five top-level keys
// in the same order (states, input_alphabet, tape_alphabet_extra,
// start_state/accept_state/reject_state, delta), with accept/reject
// states skipped from delta since Validate guarantees they carry no
// outgoing transitions.
package export

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/smasonuk/tmc/pkg/tm"
)

func symbolString(s tm.Symbol) string {
	if s == tm.Wildcard {
		return "?"
	}
	return string(rune(s))
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func flowSeq(items []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, it := range items {
		n.Content = append(n.Content, scalar(it))
	}
	return n
}

// Document builds the yaml.Node tree for machine, in ToYAML's field order.
// Building a Node tree rather than marshaling a plain struct keeps that
// order and the transition triples' flow style under direct control,
// instead of yaml.v3's default alphabetical-map-key / block-sequence
// rendering.
func Document(machine *tm.TM) *yaml.Node {
	root := &yaml.Node{Kind: yaml.MappingNode}
	put := func(key string, val *yaml.Node) {
		root.Content = append(root.Content, scalar(key), val)
	}

	states := machine.AllStates()
	stateStrs := make([]string, len(states))
	for i, s := range states {
		stateStrs[i] = string(s)
	}
	put("states", flowSeq(stateStrs))

	var inputSyms []tm.Symbol
	for s := range machine.InputAlphabet {
		inputSyms = append(inputSyms, s)
	}
	sort.Slice(inputSyms, func(i, j int) bool { return inputSyms[i] < inputSyms[j] })
	inputStrs := make([]string, len(inputSyms))
	for i, s := range inputSyms {
		inputStrs[i] = symbolString(s)
	}
	put("input_alphabet", flowSeq(inputStrs))

	var extra []tm.Symbol
	for _, s := range machine.AllTapeSymbols() {
		if s == tm.Blank {
			continue
		}
		if _, isInput := machine.InputAlphabet[s]; isInput {
			continue
		}
		extra = append(extra, s)
	}
	if len(extra) > 0 {
		extraStrs := make([]string, len(extra))
		for i, s := range extra {
			extraStrs[i] = symbolString(s)
		}
		put("tape_alphabet_extra", flowSeq(extraStrs))
	}

	put("start_state", scalar(string(machine.Start)))
	put("accept_state", scalar(string(machine.Accept)))
	put("reject_state", scalar(string(machine.Reject)))

	delta := &yaml.Node{Kind: yaml.MappingNode}
	for _, st := range states {
		if st == machine.Accept || st == machine.Reject {
			continue
		}
		syms := machine.OutgoingSymbols(st)
		if len(syms) == 0 {
			continue
		}
		stateNode := &yaml.Node{Kind: yaml.MappingNode}
		for _, sym := range syms {
			tr, _ := machine.Lookup(st, sym)
			triple := flowSeq([]string{string(tr.Next), symbolString(tr.Write), tr.Dir.String()})
			stateNode.Content = append(stateNode.Content, scalar(symbolString(sym)), triple)
		}
		delta.Content = append(delta.Content, scalar(string(st)), stateNode)
	}
	put("delta", delta)

	return root
}

// Marshal renders machine as the textual document tmc export writes.
func Marshal(machine *tm.TM) ([]byte, error) {
	return yaml.Marshal(Document(machine))
}

// doc mirrors the document's shape for unmarshaling; field order doesn't
// matter for decoding, only for Marshal's hand-built Node tree above.
type doc struct {
	States            []string                        `yaml:"states"`
	InputAlphabet     []string                        `yaml:"input_alphabet"`
	TapeAlphabetExtra []string                        `yaml:"tape_alphabet_extra"`
	StartState        string                          `yaml:"start_state"`
	AcceptState        string                         `yaml:"accept_state"`
	RejectState        string                         `yaml:"reject_state"`
	Delta              map[string]map[string][]string `yaml:"delta"`
}

func dirFromString(s string) (tm.Dir, error) {
	switch s {
	case "L":
		return tm.L, nil
	case "R":
		return tm.R, nil
	case "S":
		return tm.S, nil
	default:
		return 0, fmt.Errorf("export: unknown direction %q", s)
	}
}

func symbolFromString(s string) (tm.Symbol, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("export: symbol %q is not a single character", s)
	}
	return tm.Symbol([]rune(s)[0]), nil
}

// Unmarshal parses a document produced by Marshal back into a *tm.TM.
// Used by the round-trip tests in pkg/export and by tmc validate when
// given an already-exported file.
func Unmarshal(data []byte) (*tm.TM, error) {
	var d doc
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("export: parsing document: %w", err)
	}
	if d.StartState == "" || d.AcceptState == "" || d.RejectState == "" {
		return nil, fmt.Errorf("export: document is missing start/accept/reject state")
	}

	machine := tm.New(tm.State(d.StartState), tm.State(d.AcceptState), tm.State(d.RejectState))
	for _, s := range d.States {
		machine.States[tm.State(s)] = struct{}{}
	}
	for _, sym := range d.InputAlphabet {
		s, err := symbolFromString(sym)
		if err != nil {
			return nil, err
		}
		machine.InputAlphabet[s] = struct{}{}
		machine.TapeAlphabet[s] = struct{}{}
	}
	for _, sym := range d.TapeAlphabetExtra {
		s, err := symbolFromString(sym)
		if err != nil {
			return nil, err
		}
		machine.TapeAlphabet[s] = struct{}{}
	}

	for state, trans := range d.Delta {
		for readSym, triple := range trans {
			if len(triple) != 3 {
				return nil, fmt.Errorf("export: transition %s/%s has %d fields, want 3", state, readSym, len(triple))
			}
			var read tm.Symbol
			if readSym == "?" {
				read = tm.Wildcard
			} else {
				r, err := symbolFromString(readSym)
				if err != nil {
					return nil, err
				}
				read = r
			}
			var write tm.Symbol
			if triple[1] == "?" {
				write = tm.Wildcard
			} else {
				w, err := symbolFromString(triple[1])
				if err != nil {
					return nil, err
				}
				write = w
			}
			dir, err := dirFromString(triple[2])
			if err != nil {
				return nil, err
			}
			machine.AddTransition(tm.State(state), read, write, dir, tm.State(triple[0]))
		}
	}

	machine.Finalize()
	return machine, nil
}
