package printconfig

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/lapsim/pkg/config"
)

func TestConfigCmd(t *testing.T) {
	prev := config.Sim
	t.Cleanup(func() { config.Sim = prev })
	config.Sim = config.DefaultSimulation()
	config.Sim.LapRetention = 3

	var out bytes.Buffer
	cmd := NewConfigCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "lap-retention: 3\n")
	assert.Contains(t, out.String(), "tick: 200ms\n")
}

func TestConfigCmd_Invalid(t *testing.T) {
	prev := config.Sim
	t.Cleanup(func() { config.Sim = prev })
	config.Sim.MinSamples = 0

	cmd := NewConfigCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorIs(t, cmd.Execute(), config.ErrInvalidConfig)
}
