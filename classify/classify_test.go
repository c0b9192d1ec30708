package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vantage-genomics/buscogo/dataset"
	"github.com/vantage-genomics/buscogo/domtbl"
)

func cutoff() dataset.Cutoff {
	return dataset.Cutoff{Length: 100, Sigma: 1, Score: 50}
}

func TestClassifyComplete(t *testing.T) {
	c := New()
	matches := map[string]*domtbl.Match{
		"g1": {HMMLen: 99, Score: 200},
	}
	Classify(c, "A", matches, cutoff())
	require.Contains(t, c.Genes(Complete, "A"), "g1")
}

func TestClassifyFragmented(t *testing.T) {
	c := New()
	matches := map[string]*domtbl.Match{
		"g1": {HMMLen: 30, Score: 40}, // zeta = 70
	}
	cut := cutoff()
	cut.Score = 0
	Classify(c, "C", matches, cut)
	require.Contains(t, c.Genes(Fragmented, "C"), "g1")
}

func TestClassifyVeryLarge(t *testing.T) {
	c := New()
	matches := map[string]*domtbl.Match{
		"g1": {HMMLen: 400, Score: 200}, // zeta = (100-400)/1 = -300
	}
	Classify(c, "A", matches, cutoff())
	require.Contains(t, c.Genes(VeryLarge, "A"), "g1")
}

func TestDedupInterRankPrecedence(t *testing.T) {
	c := New()
	c.Add(Complete, "A", "g1", MatchRecord{BitScore: 200})
	c.Add(VeryLarge, "A", "g1", MatchRecord{BitScore: 180})
	c.Add(Fragmented, "A", "g1", MatchRecord{BitScore: 150})
	Dedup(c)
	require.Contains(t, c.Genes(Complete, "A"), "g1")
	require.NotContains(t, c.Genes(VeryLarge, "A"), "g1")
	require.NotContains(t, c.Genes(Fragmented, "A"), "g1")
}

func TestDedupGlobalUsedGeneSetAcrossSCOs(t *testing.T) {
	c := New()
	c.Add(Complete, "A", "g1", MatchRecord{BitScore: 200})
	c.Add(VeryLarge, "B", "g1", MatchRecord{BitScore: 190})
	Dedup(c)
	require.Contains(t, c.Genes(Complete, "A"), "g1")
	require.NotContains(t, c.Genes(VeryLarge, "B"), "g1")
}

func TestDedupIntraRankHighestBitScoreWins(t *testing.T) {
	c := New()
	c.Add(Complete, "A", "g1", MatchRecord{BitScore: 300})
	c.Add(Complete, "B", "g1", MatchRecord{BitScore: 150})
	Dedup(c)
	require.Contains(t, c.Genes(Complete, "A"), "g1")
	require.NotContains(t, c.Genes(Complete, "B"), "g1")
}

func TestDedupIntraRankFirstSeenTieBreak(t *testing.T) {
	c := New()
	c.Add(Complete, "A", "g1", MatchRecord{BitScore: 200})
	c.Add(Complete, "B", "g1", MatchRecord{BitScore: 200})
	Dedup(c)
	require.Contains(t, c.Genes(Complete, "A"), "g1")
	require.NotContains(t, c.Genes(Complete, "B"), "g1")
}

func TestDedupIsIdempotent(t *testing.T) {
	c := New()
	c.Add(Complete, "A", "g1", MatchRecord{BitScore: 200})
	c.Add(VeryLarge, "B", "g1", MatchRecord{BitScore: 190})
	c.Add(Complete, "C", "g2", MatchRecord{BitScore: 300})
	c.Add(Complete, "D", "g2", MatchRecord{BitScore: 150})
	Dedup(c)
	snapshotA := c.Genes(Complete, "A")
	snapshotC := c.Genes(Complete, "C")
	Dedup(c)
	require.Equal(t, snapshotA, c.Genes(Complete, "A"))
	require.Equal(t, snapshotC, c.Genes(Complete, "C"))
}

func TestPruneDropsBelow85PercentOfBest(t *testing.T) {
	c := New()
	c.Add(Complete, "A", "g1", MatchRecord{BitScore: 200})
	c.Add(Complete, "A", "g2", MatchRecord{BitScore: 100}) // below 0.85*200 = 170
	Prune(c)
	require.Contains(t, c.Genes(Complete, "A"), "g1")
	require.NotContains(t, c.Genes(Complete, "A"), "g2")
}

func TestPruneRemovesGeneWithNoSurvivingRecord(t *testing.T) {
	c := New()
	c.Add(Complete, "A", "g1", MatchRecord{BitScore: 200})
	c.Add(Complete, "A", "g2", MatchRecord{BitScore: 1})
	Prune(c)
	require.NotContains(t, c.Genes(Complete, "A"), "g2")
	require.Contains(t, c.Genes(Complete, "A"), "g1")
}

func TestRemoveKeepsInverseIndexConsistent(t *testing.T) {
	c := New()
	c.Add(Complete, "A", "g1", MatchRecord{BitScore: 200})
	c.Add(Complete, "B", "g1", MatchRecord{BitScore: 150})
	c.Remove(Complete, "A", "g1")
	require.NotContains(t, c.Claimants(Complete, "g1"), "A")
	require.Contains(t, c.Claimants(Complete, "g1"), "B")
}
