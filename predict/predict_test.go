package predict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsInitialPass(t *testing.T) {
	o := Defaults(PassInitial, "genome.fa", "ref.faa", "out/run1", "scratch", 50000, 100000, 4)
	require.Equal(t, 15, o.MinExonAA)
	require.Equal(t, 15, o.MaxOverlap)
	require.Equal(t, 5, o.MinIntron)
	require.Equal(t, 1, o.Overlap)
	require.Equal(t, 0, o.Sensitivity)
}

func TestDefaultsRerunPass(t *testing.T) {
	o := Defaults(PassRerun, "genome.fa", "ref.faa", "out/run2", "scratch", 50000, 100000, 4)
	require.Equal(t, 5, o.MinExonAA)
	require.Equal(t, 5, o.MaxOverlap)
	require.Equal(t, 1, o.MinIntron)
	require.Equal(t, 6, o.Sensitivity)
}

func TestApplyExtraParamsOverridesFixedOption(t *testing.T) {
	o := Defaults(PassInitial, "g", "r", "o", "s", 50000, 100000, 4)
	o = ApplyExtraParams(o, "--min-exon-aa=20")
	require.Equal(t, 20, o.MinExonAA)
}

func TestApplyExtraParamsSkipsUnknownKey(t *testing.T) {
	o := Defaults(PassInitial, "g", "r", "o", "s", 50000, 100000, 4)
	o = ApplyExtraParams(o, "--not-a-real-flag=1")
	require.Empty(t, o.ExtraFlags)
}

func TestApplyExtraParamsDiscardsMalformedInput(t *testing.T) {
	o := Defaults(PassInitial, "g", "r", "o", "s", 50000, 100000, 4)
	before := o
	o = ApplyExtraParams(o, "not even close to a flag string")
	require.Equal(t, before, o)
}

func TestApplyExtraParamsAllowsAllowListedKey(t *testing.T) {
	o := Defaults(PassInitial, "g", "r", "o", "s", 50000, 100000, 4)
	o = ApplyExtraParams(o, "--comp-bias-corr=1")
	require.Equal(t, "--comp-bias-corr 1", o.ExtraFlags)
}
