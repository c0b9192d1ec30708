package domtbl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vantage-genomics/buscogo/dataset"
)

func cutoffs() dataset.Cutoffs {
	return dataset.Cutoffs{
		"1at2759": {Length: 100, Sigma: 10, Score: 50},
	}
}

func TestParseAggregatesHMMLenAcrossHits(t *testing.T) {
	data := strings.Join([]string{
		"# comment",
		"gene1 - 300 - - - - 75.0 - - - - - - - 10 40 - - 100 140 - -",
		"gene1 - 300 - - - - 75.0 - - - - - - - 50 90 - - 200 240 - -",
	}, "\n")
	matches, err := Parse(strings.NewReader(data), "1at2759", cutoffs())
	require.NoError(t, err)
	require.Contains(t, matches, "gene1")
	require.Equal(t, 70, matches["gene1"].HMMLen)
	require.Len(t, matches["gene1"].EnvCoords, 2)
}

func TestParseDiscardsHitsBelowScoreCutoff(t *testing.T) {
	data := "gene1 - 300 - - - - 10.0 - - - - - - - 10 40 - - 100 140 - -"
	matches, err := Parse(strings.NewReader(data), "1at2759", cutoffs())
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestParseUnknownSCOIsFatal(t *testing.T) {
	_, err := Parse(strings.NewReader(""), "nope", cutoffs())
	require.Error(t, err)
}

func TestParseMalformedRowIsFatal(t *testing.T) {
	_, err := Parse(strings.NewReader("too few fields\n"), "1at2759", cutoffs())
	require.Error(t, err)
}

func TestParseCapturesFrameTagInTranscriptomeMode(t *testing.T) {
	data := "gene1 - 300 - - - - 75.0 - - - - - - - 10 40 - - 100 140 - frame=1"
	matches, err := Parse(strings.NewReader(data), "1at2759", cutoffs())
	require.NoError(t, err)
	require.Equal(t, "frame=1", matches["gene1"].Frame)
}
