package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vantage-genomics/buscogo/classify"
	"github.com/vantage-genomics/buscogo/domtbl"
	"github.com/vantage-genomics/buscogo/header"
)

func exon(ntLen int) ExonRecord {
	return ExonRecord{NTLen: ntLen}
}

func TestFindUnusedExonsAllCovered(t *testing.T) {
	envs := []domtbl.EnvCoord{{Start: 1, End: 30}}
	exons := []ExonRecord{exon(30), exon(30), exon(30)} // 10, 10, 10 aa; cumulative 10,20,30
	used, unused, err := findUnusedExons(envs, exons)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, used)
	require.Empty(t, unused)
}

func TestFindUnusedExonsTrailingUncovered(t *testing.T) {
	envs := []domtbl.EnvCoord{{Start: 1, End: 10}}
	exons := []ExonRecord{exon(30), exon(30)} // 10 aa, 10 aa; cumulative 10, 20
	used, unused, err := findUnusedExons(envs, exons)
	require.NoError(t, err)
	require.Equal(t, []int{0}, used)
	require.Equal(t, []int{1}, unused)
}

func TestFindUnusedExonsLeadingUncovered(t *testing.T) {
	envs := []domtbl.EnvCoord{{Start: 15, End: 30}}
	exons := []ExonRecord{exon(30), exon(30), exon(30)} // cumulative 10, 20, 30
	used, unused, err := findUnusedExons(envs, exons)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, used)
	require.Equal(t, []int{0}, unused)
}

func TestFindUnusedExonsFractionalFrameErrors(t *testing.T) {
	envs := []domtbl.EnvCoord{{Start: 1, End: 10}}
	exons := []ExonRecord{{NTLen: 10}}
	_, _, err := findUnusedExons(envs, exons)
	require.Error(t, err)
}

func TestReconcileDropsSecondarySCOOverlappingExon(t *testing.T) {
	c := classify.New()
	c.Add(classify.Complete, "A", "contig1:1-9", classify.MatchRecord{BitScore: 200})
	c.Add(classify.Complete, "B", "contig1:4-12", classify.MatchRecord{BitScore: 100})

	headers := [2]PassHeaders{
		{
			"contig1:1-9":  header.Gene{Contig: "contig1", Strand: '+', Start: 1, End: 9, Exons: []header.Exon{{Low: 1, High: 9, TakenLow: 1, TakenHigh: 9, TakenNTLen: 9}}},
			"contig1:4-12": header.Gene{Contig: "contig1", Strand: '+', Start: 4, End: 12, Exons: []header.Exon{{Low: 4, High: 12, TakenLow: 4, TakenHigh: 12, TakenNTLen: 9}}},
		},
		{},
	}
	matches := [2]PassMatches{
		{
			"A": {"contig1:1-9": {EnvCoords: []domtbl.EnvCoord{{Start: 1, End: 3}}}},
			"B": {"contig1:4-12": {EnvCoords: []domtbl.EnvCoord{{Start: 1, End: 3}}}},
		},
		{},
	}

	err := Reconcile(c, headers, matches, map[string]bool{})
	require.NoError(t, err)

	require.NotEmpty(t, c.Genes(classify.Complete, "A"))
	require.Empty(t, c.Genes(classify.Complete, "B"))
}
