package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDSWPAcceptsBuiltinDemoLoop(t *testing.T) {
	root := &rootFlags{}
	opts := runOptions{
		input: builtinDemoLoop,
		proc:  "loop_fixture",
		loop:  "header",
		cores: 1,
	}

	require.NoError(t, runDSWP(root, opts))
}

func TestRunDSWPRejectsUnsupportedInput(t *testing.T) {
	root := &rootFlags{}
	opts := runOptions{
		input: "some/real/object.o",
		proc:  "loop_fixture",
		loop:  "header",
		cores: 1,
	}

	err := runDSWP(root, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported --input")
}

func TestRunDSWPRejectsInvalidConfig(t *testing.T) {
	root := &rootFlags{}
	opts := runOptions{
		input: builtinDemoLoop,
		proc:  "loop_fixture",
		loop:  "loop_fixture",
		cores: 1,
	}

	err := runDSWP(root, opts)
	require.Error(t, err)
}

func TestNewRootCmdWiresRunSubcommand(t *testing.T) {
	cmd := newRootCmd()
	sub, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "run", sub.Name())
}
