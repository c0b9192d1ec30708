// Package classify implements the Match Classifier, Cross-SCO
// Deduplicator and Low-Score Pruner (spec §4.H, §4.I, §4.J), grounded
// on the original hmmer.py's _sort_matches, _remove_duplicates,
// _remove_lower_ranked_duplicates, _remove_remaining_duplicate_matches
// and _remove_low_scoring_matches.
package classify

import (
	"sort"

	"github.com/vantage-genomics/buscogo/dataset"
	"github.com/vantage-genomics/buscogo/domtbl"
)

// Rank is a classification tier; lower value is higher precedence.
type Rank int

const (
	Complete Rank = iota
	VeryLarge
	Fragmented
	numRanks
)

// MatchRecord is one (SCO, gene) classification result (spec §3).
type MatchRecord struct {
	BitScore float64
	Length   int
	Frame    string
}

// Classification holds the three rank maps and their inverse indices.
// The forward maps and the matched_genes_<rank> index are only ever
// mutated through Add and Remove, which keep the two in lockstep (spec
// §9).
type Classification struct {
	ranks   [numRanks]map[string]map[string][]MatchRecord // rank -> sco -> gene -> records
	matched [numRanks]map[string][]string                 // rank -> gene -> scos, first-seen order
}

// New returns an empty Classification.
func New() *Classification {
	c := &Classification{}
	for r := range c.ranks {
		c.ranks[r] = make(map[string]map[string][]MatchRecord)
		c.matched[r] = make(map[string][]string)
	}
	return c
}

// Add records one (sco, gene) match in rank, appending to any existing
// records for the same pair and extending the inverse index the first
// time this sco claims this gene in this rank.
func (c *Classification) Add(rank Rank, sco, gene string, rec MatchRecord) {
	genes, ok := c.ranks[rank][sco]
	if !ok {
		genes = make(map[string][]MatchRecord)
		c.ranks[rank][sco] = genes
	}
	genes[gene] = append(genes[gene], rec)

	for _, s := range c.matched[rank][gene] {
		if s == sco {
			return
		}
	}
	c.matched[rank][gene] = append(c.matched[rank][gene], sco)
}

// Remove purges every record of (sco, gene) from rank and updates the
// inverse index. The single mutation primitive required by spec §9.
func (c *Classification) Remove(rank Rank, sco, gene string) {
	if genes, ok := c.ranks[rank][sco]; ok {
		delete(genes, gene)
		if len(genes) == 0 {
			delete(c.ranks[rank], sco)
		}
	}
	if scos, ok := c.matched[rank][gene]; ok {
		out := scos[:0]
		for _, s := range scos {
			if s != sco {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			delete(c.matched[rank], gene)
		} else {
			c.matched[rank][gene] = out
		}
	}
}

// Rename replaces oldGene with newGene for sco in rank, carrying its
// records over unchanged (spec §4.L step 5).
func (c *Classification) Rename(rank Rank, sco, oldGene, newGene string) {
	recs := c.ranks[rank][sco][oldGene]
	c.Remove(rank, sco, oldGene)
	for _, r := range recs {
		c.Add(rank, sco, newGene, r)
	}
}

// Genes returns the gene ids currently claimed by sco in rank.
func (c *Classification) Genes(rank Rank, sco string) map[string][]MatchRecord {
	return c.ranks[rank][sco]
}

// Claimants returns the SCO ids currently claiming gene in rank, in
// first-seen order.
func (c *Classification) Claimants(rank Rank, gene string) []string {
	return c.matched[rank][gene]
}

// SCOs returns every SCO id with at least one record in rank.
func (c *Classification) SCOs(rank Rank) []string {
	ids := make([]string, 0, len(c.ranks[rank]))
	for sco := range c.ranks[rank] {
		ids = append(ids, sco)
	}
	sort.Strings(ids)
	return ids
}

// Classify computes ζ for every gene match against one SCO's cutoff and
// files it into the appropriate rank (spec §4.H). Genes are processed in
// sorted order so that downstream first-seen tie-breaks are
// deterministic.
func Classify(c *Classification, scoID string, matches map[string]*domtbl.Match, cutoff dataset.Cutoff) {
	geneIDs := make([]string, 0, len(matches))
	for id := range matches {
		geneIDs = append(geneIDs, id)
	}
	sort.Strings(geneIDs)

	for _, geneID := range geneIDs {
		m := matches[geneID]
		zeta := (cutoff.Length - float64(m.HMMLen)) / cutoff.Sigma
		rec := MatchRecord{BitScore: m.Score, Length: m.HMMLen, Frame: m.Frame}
		switch {
		case zeta >= -2 && zeta <= 2:
			c.Add(Complete, scoID, geneID, rec)
		case zeta < -2:
			c.Add(VeryLarge, scoID, geneID, rec)
		default:
			c.Add(Fragmented, scoID, geneID, rec)
		}
	}
}

// Dedup removes duplicate claims across ranks and within ranks (spec
// §4.I). It is idempotent: calling it twice in succession is a no-op on
// the second call.
func Dedup(c *Classification) {
	dedupInterRank(c)
	dedupIntraRank(c)
}

func dedupInterRank(c *Classification) {
	for _, sco := range c.SCOs(Complete) {
		removeSCO(c, VeryLarge, sco)
		removeSCO(c, Fragmented, sco)
	}
	for _, sco := range c.SCOs(VeryLarge) {
		removeSCO(c, Fragmented, sco)
	}

	used := make(map[string]bool)
	for _, sco := range c.SCOs(Complete) {
		for gene := range c.Genes(Complete, sco) {
			used[gene] = true
		}
	}
	for _, sco := range c.SCOs(VeryLarge) {
		for gene := range c.Genes(VeryLarge, sco) {
			if used[gene] {
				c.Remove(VeryLarge, sco, gene)
			}
		}
	}
	for _, sco := range c.SCOs(VeryLarge) {
		for gene := range c.Genes(VeryLarge, sco) {
			used[gene] = true
		}
	}
	for _, sco := range c.SCOs(Fragmented) {
		for gene := range c.Genes(Fragmented, sco) {
			if used[gene] {
				c.Remove(Fragmented, sco, gene)
			}
		}
	}
}

func removeSCO(c *Classification, rank Rank, sco string) {
	genes := c.Genes(rank, sco)
	ids := make([]string, 0, len(genes))
	for gene := range genes {
		ids = append(ids, gene)
	}
	for _, gene := range ids {
		c.Remove(rank, sco, gene)
	}
}

func dedupIntraRank(c *Classification) {
	for _, rank := range []Rank{Complete, VeryLarge, Fragmented} {
		genes := make([]string, 0)
		for gene := range c.matched[rank] {
			genes = append(genes, gene)
		}
		sort.Strings(genes)
		for _, gene := range genes {
			scos := c.Claimants(rank, gene)
			if len(scos) <= 1 {
				continue
			}
			winner := scos[0]
			winnerScore := bestBitScore(c, rank, scos[0], gene)
			for _, sco := range scos[1:] {
				score := bestBitScore(c, rank, sco, gene)
				if score > winnerScore {
					winner, winnerScore = sco, score
				}
			}
			for _, sco := range scos {
				if sco != winner {
					c.Remove(rank, sco, gene)
				}
			}
		}
	}
}

func bestBitScore(c *Classification, rank Rank, sco, gene string) float64 {
	best := 0.0
	for _, r := range c.Genes(rank, sco)[gene] {
		if r.BitScore > best {
			best = r.BitScore
		}
	}
	return best
}

// Prune drops, within each SCO and rank, any record scoring below 85%
// of that SCO's best bitscore in that rank; genes left with no surviving
// record are removed, and SCOs left with no genes are removed (spec
// §4.J).
func Prune(c *Classification) {
	for _, rank := range []Rank{Complete, VeryLarge, Fragmented} {
		for _, sco := range c.SCOs(rank) {
			genes := c.Genes(rank, sco)

			best := 0.0
			for _, recs := range genes {
				for _, r := range recs {
					if r.BitScore > best {
						best = r.BitScore
					}
				}
			}
			threshold := 0.85 * best

			var empty []string
			for gene, recs := range genes {
				kept := recs[:0]
				for _, r := range recs {
					if r.BitScore >= threshold {
						kept = append(kept, r)
					}
				}
				if len(kept) == 0 {
					empty = append(empty, gene)
				} else {
					genes[gene] = kept
				}
			}
			for _, gene := range empty {
				c.Remove(rank, sco, gene)
			}
		}
	}
}
