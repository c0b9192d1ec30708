package refset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildStripsVariantSuffixAndKeepsRetained(t *testing.T) {
	src := strings.NewReader(">1at2759_1 desc\nMKV\n>2at2759 desc\nMKL\n>3at2759 desc\nMKM\n")
	var dst bytes.Buffer
	err := Build(&dst, src, []string{"1at2759", "2at2759"})
	require.NoError(t, err)
	out := dst.String()
	require.Contains(t, out, ">1at2759 ")
	require.Contains(t, out, ">2at2759 ")
	require.NotContains(t, out, "3at2759")
}

func TestBuildDropsUnrelatedPrefixMatch(t *testing.T) {
	// "1at27599" must not match retained id "1at2759".
	src := strings.NewReader(">1at27599 desc\nMKV\n")
	var dst bytes.Buffer
	err := Build(&dst, src, []string{"1at2759"})
	require.NoError(t, err)
	require.Empty(t, dst.String())
}

func TestBuildDoesNotFailOnUnmatchedRequestedID(t *testing.T) {
	src := strings.NewReader(">1at2759 desc\nMKV\n")
	var dst bytes.Buffer
	err := Build(&dst, src, []string{"1at2759", "9at2759"})
	require.NoError(t, err)
}
