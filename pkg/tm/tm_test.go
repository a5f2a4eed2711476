package tm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_MinimalMachine(t *testing.T) {
	m := New("start", "accept", "reject")
	m.AddTransition("start", Blank, Blank, S, "accept")
	m.InputAlphabet['a'] = struct{}{}
	m.Finalize()

	require.NoError(t, m.Validate())
}

func TestValidate_DanglingTargetState(t *testing.T) {
	m := New("start", "accept", "reject")
	m.AddTransition("start", 'a', 'a', R, "accept")
	// Manually corrupt the table with a transition to an unknown state,
	// bypassing AddTransition's side effect of registering the target.
	delete(m.States, "ghost")
	m.delta[key{"start", Blank}] = Transition{Write: Blank, Dir: R, Next: "ghost"}
	m.Finalize()

	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestValidate_TerminalStateWithOutgoing(t *testing.T) {
	m := New("start", "accept", "reject")
	m.AddTransition("accept", 'a', 'a', S, "start")
	m.Finalize()

	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accept")
}

func TestValidate_InputAlphabetMustBeSubsetOfTapeAlphabet(t *testing.T) {
	m := New("start", "accept", "reject")
	m.InputAlphabet['z'] = struct{}{}
	m.TapeAlphabet[Blank] = struct{}{}
	// Finalize folds InputAlphabet into TapeAlphabet, so this should pass;
	// without Finalize, it must fail.
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "z")

	m.Finalize()
	require.NoError(t, m.Validate())
}

func TestAddTransition_OverwritesExistingOnSameKey(t *testing.T) {
	m := New("start", "accept", "reject")
	m.AddTransition("start", 'a', 'x', R, "accept")
	m.AddTransition("start", 'a', 'y', L, "reject")

	tr, ok := m.Lookup("start", 'a')
	require.True(t, ok)
	assert.Equal(t, Symbol('y'), tr.Write)
	assert.Equal(t, L, tr.Dir)
	assert.Equal(t, State("reject"), tr.Next)
}

func TestLookup_FallsBackToWildcard(t *testing.T) {
	m := New("start", "accept", "reject")
	m.AddTransition("start", Wildcard, Wildcard, R, "accept")

	tr, ok := m.Lookup("start", 'z')
	require.True(t, ok)
	assert.Equal(t, Wildcard, tr.Write)

	_, ok = m.Lookup("accept", 'z')
	assert.False(t, ok)
}

func TestHasTransition(t *testing.T) {
	m := New("start", "accept", "reject")
	assert.False(t, m.HasTransition("start", 'a'))
	m.AddTransition("start", 'a', 'a', S, "accept")
	assert.True(t, m.HasTransition("start", 'a'))
}

func TestFinalize_RegistersDistinguishedStates(t *testing.T) {
	m := &TM{
		States:        map[State]struct{}{},
		InputAlphabet: map[Symbol]struct{}{},
		TapeAlphabet:  map[Symbol]struct{}{},
		Start:         "s0",
		Accept:        "qA",
		Reject:        "qR",
		delta:         map[key]Transition{},
	}
	m.Finalize()

	_, hasStart := m.States["s0"]
	_, hasAccept := m.States["qA"]
	_, hasReject := m.States["qR"]
	assert.True(t, hasStart)
	assert.True(t, hasAccept)
	assert.True(t, hasReject)
	_, hasBlank := m.TapeAlphabet[Blank]
	assert.True(t, hasBlank)
}
