package runctx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigValidateRejectsUnimplementedMode(t *testing.T) {
	c := Config{Mode: ModeTranscriptome, Domain: DomainEukaryota}
	require.Error(t, c.Validate())
}

func TestConfigValidateRejectsUnimplementedDomain(t *testing.T) {
	c := Config{Mode: ModeGenome, Domain: DomainViruses}
	require.Error(t, c.Validate())
}

func TestConfigValidateAcceptsGenomeEukaryota(t *testing.T) {
	c := Config{Mode: ModeGenome, Domain: DomainEukaryota}
	require.NoError(t, c.Validate())
}

func TestWorkersDefaultsToOne(t *testing.T) {
	rc := &RunContext{Config: Config{CPU: 0}}
	require.Equal(t, 1, rc.Workers())

	rc.Config.CPU = 4
	require.Equal(t, 4, rc.Workers())
}
