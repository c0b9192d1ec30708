package header

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleHeader(t *testing.T) {
	line := "T1|chr1|+|123.4|1e-30|2|100|400|100[105]:200[205]:105[105]|300[305]:400[405]:105[105]"
	g, err := Parse(line)
	require.NoError(t, err)
	require.Equal(t, "chr1", g.Contig)
	require.Equal(t, byte('+'), g.Strand)
	require.Equal(t, 100, g.Start)
	require.Equal(t, 400, g.End)
	require.Equal(t, 123.4, g.BitScore)
	require.Len(t, g.Exons, 2)
	require.Equal(t, "chr1:100-400", g.ID())
	require.Equal(t, "T1", g.TAcc)
}

func TestParseStripsVariantSuffixFromTAcc(t *testing.T) {
	line := "123at2759_1|chr1|+|123.4|1e-30|1|100|400|100[105]:200[205]:105[105]"
	g, err := Parse(line)
	require.NoError(t, err)
	require.Equal(t, "123at2759", g.TAcc)
}

func TestParsePipeInContigName(t *testing.T) {
	// C_acc itself contains "|" (spec §8.11 / §9 OQ2).
	line := "T1|scaffold|with|pipe|+|50.0|1e-5|1|10|20|10[15]:20[25]:11[11]"
	g, err := Parse(line)
	require.NoError(t, err)
	require.Equal(t, "scaffold|with|pipe", g.Contig)
	require.Equal(t, byte('+'), g.Strand)
	require.Equal(t, 10, g.Start)
	require.Equal(t, 20, g.End)
}

func TestParseMinusStrandTakenLowCorrection(t *testing.T) {
	// taken_high + taken_nt_len - 1 != taken_low triggers a recompute
	// (spec §3, §8.12): taken_high=200, taken_nt_len=30 -> expected 229,
	// but the header claims taken_low=999, which must be overridden.
	line := "T1|chr2|-|10.0|1e-2|1|50|250|100[999]:200[200]:30[30]"
	g, err := Parse(line)
	require.NoError(t, err)
	require.Len(t, g.Exons, 1)
	require.Equal(t, 229, g.Exons[0].TakenLow)
}

func TestParseMalformedHeaderIsFatal(t *testing.T) {
	_, err := Parse("too|few|fields")
	require.Error(t, err)
}

func TestParseNormalizesMinusStrandCoordinateSwap(t *testing.T) {
	// Predictor's convention of swapping low/high on the minus strand
	// must be undone before storage (spec §3).
	line := "T1|chr3|-|5.0|1e-2|1|400|100|100[105]:400[405]:301[301]"
	g, err := Parse(line)
	require.NoError(t, err)
	require.Equal(t, 100, g.Start)
	require.Equal(t, 400, g.End)
}
