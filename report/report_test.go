package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vantage-genomics/buscogo/classify"
	"github.com/vantage-genomics/buscogo/dataset"
)

func sampleClassification() *classify.Classification {
	c := classify.New()
	c.Add(classify.Complete, "1at2759", "contig1:1-100", classify.MatchRecord{BitScore: 300, Length: 98})
	c.Add(classify.Complete, "2at2759", "contig1:200-300", classify.MatchRecord{BitScore: 250, Length: 95})
	c.Add(classify.Complete, "2at2759", "contig2:10-90", classify.MatchRecord{BitScore: 240, Length: 90})
	c.Add(classify.Fragmented, "3at2759", "contig3:1-20", classify.MatchRecord{BitScore: 40, Length: 20})
	return c
}

func TestRowsClassifiesSingleDuplicatedFragmentedMissing(t *testing.T) {
	rows := Rows(sampleClassification(), []string{"1at2759", "2at2759", "3at2759", "4at2759"})

	byID := map[string][]Row{}
	for _, r := range rows {
		byID[r.SCOID] = append(byID[r.SCOID], r)
	}
	require.Len(t, byID["1at2759"], 1)
	require.Equal(t, StatusComplete, byID["1at2759"][0].Status)

	require.Len(t, byID["2at2759"], 2)
	require.Equal(t, StatusDuplicated, byID["2at2759"][0].Status)

	require.Len(t, byID["3at2759"], 1)
	require.Equal(t, StatusFragmented, byID["3at2759"][0].Status)

	require.Len(t, byID["4at2759"], 1)
	require.Equal(t, StatusMissing, byID["4at2759"][0].Status)
}

func TestRowsSortsByIntegerPrefixNotLexicographically(t *testing.T) {
	c := classify.New()
	c.Add(classify.Complete, "2at2759", "contig1:1-100", classify.MatchRecord{BitScore: 300, Length: 98})
	c.Add(classify.Complete, "10at2759", "contig2:1-100", classify.MatchRecord{BitScore: 300, Length: 98})

	rows := Rows(c, []string{"10at2759", "2at2759"})
	require.Len(t, rows, 2)
	require.Equal(t, "2at2759", rows[0].SCOID)
	require.Equal(t, "10at2759", rows[1].SCOID)
}

func TestSummarizeCountsSCOsNotGenes(t *testing.T) {
	rows := Rows(sampleClassification(), []string{"1at2759", "2at2759", "3at2759", "4at2759"})
	c := Summarize(rows)
	require.Equal(t, 1, c.Single)
	require.Equal(t, 1, c.Duplicated)
	require.Equal(t, 1, c.Fragmented)
	require.Equal(t, 1, c.Missing)
	require.Equal(t, 4, c.Total)
}

func TestWriteFullTableIncludesLinks(t *testing.T) {
	dir := t.TempDir()
	rows := Rows(sampleClassification(), []string{"1at2759"})
	links := dataset.Links{"1at2759": {Description: "some protein", URL: "http://example.org/1"}}
	require.NoError(t, WriteFullTable(dir, rows, links, Meta{DatasetName: "eukaryota_odb10"}))

	content, err := os.ReadFile(filepath.Join(dir, "full_table.tsv"))
	require.NoError(t, err)
	require.Contains(t, string(content), "some protein")
	require.Contains(t, string(content), "http://example.org/1")
}

func TestWriteMissingListOnlyListsMissing(t *testing.T) {
	dir := t.TempDir()
	rows := Rows(sampleClassification(), []string{"1at2759", "4at2759"})
	require.NoError(t, WriteMissingList(dir, rows))

	content, err := os.ReadFile(filepath.Join(dir, "missing_busco_list.tsv"))
	require.NoError(t, err)
	require.Equal(t, "4at2759\n", string(content))
}

func TestWriteShortSummaryComputesPercentages(t *testing.T) {
	dir := t.TempDir()
	rows := Rows(sampleClassification(), []string{"1at2759", "2at2759", "3at2759", "4at2759"})
	require.NoError(t, WriteShortSummary(dir, rows, Meta{}))

	content, err := os.ReadFile(filepath.Join(dir, "short_summary.txt"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(content), "n:4"))
}

func TestWriteSequencesSkipsMissingAndWritesAvailable(t *testing.T) {
	dir := t.TempDir()
	rows := Rows(sampleClassification(), []string{"1at2759"})
	src := SequenceSource{
		Protein: map[string]string{"contig1:1-100": "MKVLAA"},
	}
	require.NoError(t, WriteSequences(dir, rows, src))

	content, err := os.ReadFile(filepath.Join(dir, "busco_sequences", "single_copy", "1at2759.faa"))
	require.NoError(t, err)
	require.Contains(t, string(content), ">contig1:1-100")
	require.Contains(t, string(content), "MKVLAA")

	_, err = os.Stat(filepath.Join(dir, "busco_sequences", "single_copy", "1at2759.fna"))
	require.True(t, os.IsNotExist(err))
}

func TestParseGeneIDRoundTrips(t *testing.T) {
	contig, low, high, ok := parseGeneID("contig1:10-90")
	require.True(t, ok)
	require.Equal(t, "contig1", contig)
	require.Equal(t, 10, low)
	require.Equal(t, 90, high)
}

func TestParseGeneIDRejectsMalformed(t *testing.T) {
	_, _, _, ok := parseGeneID("not-a-gene-id")
	require.False(t, ok)
}
