// Package reconcile implements the Exon Reconciler (spec §4.L),
// grounded on the original GenomeAnalysis.get_exon_records /
// exons_to_df / find_overlaps / handle_diff_busco_overlap /
// find_unused_exons. It is the one component that inspects exon-level
// detail across SCOs, run once after the two-pass loop and before final
// consolidation.
package reconcile

import (
	"fmt"

	"github.com/vantage-genomics/buscogo/buscoerr"
	"github.com/vantage-genomics/buscogo/classify"
	"github.com/vantage-genomics/buscogo/domtbl"
	"github.com/vantage-genomics/buscogo/header"
	"github.com/vantage-genomics/buscogo/overlap"
)

// ExonRecord is one exon of a classified gene, strand-normalized so
// Low < High always holds (spec §3, §4.L step 2).
type ExonRecord struct {
	SCOID  string
	Contig string
	Low    int
	High   int
	Strand byte
	NTLen  int
}

// geneKey identifies the owning (rank, SCO, gene) group an exon belongs
// to.
type geneKey struct {
	Rank classify.Rank
	SCO  string
	Gene string
}

// PassHeaders indexes parsed predictor header lines by gene id for one
// pass.
type PassHeaders map[string]header.Gene

// PassMatches indexes one pass's domain-table parse results by SCO id
// then gene id.
type PassMatches map[string]map[string]*domtbl.Match

// Reconcile resolves cross-SCO exon overlaps and rebuilds gene ids from
// surviving exon envelopes, mutating c in place.
//
// headers and matches are indexed [0] = pass 1, [1] = pass 2.
// scoHasPass2Output records which SCOs actually produced a pass-2
// profile-search output file (spec §9 open question: pass 2 is
// preferred when both exist).
func Reconcile(c *classify.Classification, headers [2]PassHeaders, matches [2]PassMatches, scoHasPass2Output map[string]bool) error {
	exonLists := make(map[geneKey][]ExonRecord)
	passOf := make(map[geneKey]int)

	for _, rank := range []classify.Rank{classify.Complete, classify.VeryLarge, classify.Fragmented} {
		for _, sco := range c.SCOs(rank) {
			for gene := range c.Genes(rank, sco) {
				g, pass, ok := lookupGene(headers, gene, scoHasPass2Output[sco])
				if !ok {
					return buscoerr.New(buscoerr.HeaderMalformed, gene, nil)
				}
				exons := make([]ExonRecord, 0, len(g.Exons))
				for _, e := range g.Exons {
					// The taken span is what the exon actually contributes
					// to the translated protein; overlap detection and the
					// exon walk both operate on it, not the raw exon
					// boundary.
					low, high := e.TakenLow, e.TakenHigh
					if g.Strand == '-' && high < low {
						low, high = high, low
					}
					if e.TakenNTLen%3 != 0 {
						return buscoerr.New(buscoerr.ExonFractionalFrame, gene, nil)
					}
					exons = append(exons, ExonRecord{
						SCOID: sco, Contig: g.Contig, Low: low, High: high,
						Strand: g.Strand, NTLen: e.TakenNTLen,
					})
				}
				key := geneKey{Rank: rank, SCO: sco, Gene: gene}
				exonLists[key] = exons
				passOf[key] = pass
			}
		}
	}

	type flatExon struct {
		key geneKey
		idx int
	}
	var flats []flatExon
	var records []overlap.Record
	for key, exons := range exonLists {
		for i, e := range exons {
			records = append(records, overlap.Record{
				Contig: e.Contig, Strand: e.Strand, Low: e.Low, High: e.High,
				Group: key.SCO, Index: len(records),
			})
			flats = append(flats, flatExon{key: key, idx: i})
		}
	}

	pairs := overlap.FindPairs(records)

	removed := make(map[geneKey]map[int]bool)
	dropped := make(map[geneKey]bool)
	resolved := make(map[[2]geneKey]bool)

	for _, p := range pairs {
		fa, fb := flats[p.A], flats[p.B]
		if fa.key.SCO == fb.key.SCO {
			continue
		}
		ra, rb := records[p.A], records[p.B]
		if ra.Low%3 != rb.Low%3 {
			continue
		}

		pk := orderedPairKey(fa.key, fb.key)
		if resolved[pk] {
			continue
		}
		resolved[pk] = true
		if dropped[fa.key] || dropped[fb.key] {
			continue
		}

		priority, secondary := fa.key, fb.key
		if bestBitScore(c, fb.key) > bestBitScore(c, fa.key) {
			priority, secondary = fb.key, fa.key
		}

		if err := resolveGenePair(exonLists, matches, passOf, priority, secondary, removed, dropped); err != nil {
			return err
		}
	}

	return rebuild(c, exonLists, removed, dropped)
}

func orderedPairKey(a, b geneKey) [2]geneKey {
	if fmt.Sprint(a) < fmt.Sprint(b) {
		return [2]geneKey{a, b}
	}
	return [2]geneKey{b, a}
}

func bestBitScore(c *classify.Classification, k geneKey) float64 {
	best := 0.0
	for _, r := range c.Genes(k.Rank, k.SCO)[k.Gene] {
		if r.BitScore > best {
			best = r.BitScore
		}
	}
	return best
}

func lookupGene(headers [2]PassHeaders, geneID string, preferPass2 bool) (header.Gene, int, bool) {
	if preferPass2 && headers[1] != nil {
		if g, ok := headers[1][geneID]; ok {
			return g, 2, true
		}
	}
	if headers[0] != nil {
		if g, ok := headers[0][geneID]; ok {
			return g, 1, true
		}
	}
	if headers[1] != nil {
		if g, ok := headers[1][geneID]; ok {
			return g, 2, true
		}
	}
	return header.Gene{}, 0, false
}

// findUnusedExons partitions a gene's exons, in order, into those that
// contribute to profile-search envelope coverage and those that don't
// (spec §4.L "Exon-walk semantics").
func findUnusedExons(envs []domtbl.EnvCoord, exons []ExonRecord) (used, unused []int, err error) {
	var cur *domtbl.EnvCoord
	next := 0
	if len(envs) > 0 {
		cur = &envs[0]
		next = 1
	}

	remaining := 0
	cumul := 0
	for i, e := range exons {
		if e.NTLen%3 != 0 {
			return nil, nil, buscoerr.New(buscoerr.ExonFractionalFrame, "", nil)
		}
		sizeAA := e.NTLen / 3
		cumul += sizeAA

		matched := false
		switch {
		case remaining > sizeAA:
			remaining -= sizeAA
			matched = true
		case remaining > 0:
			// Residual intentionally left unconsumed here, mirroring the
			// original walk exactly.
			matched = true
		case cur != nil:
			for cur != nil && cur.Start < cumul+1 {
				matched = true
				if cur.End <= cumul+1 {
					if next < len(envs) {
						cur = &envs[next]
						next++
						continue
					}
					cur = nil
					break
				}
				remaining = cur.End - sizeAA + 1
				break
			}
		}

		if matched {
			used = append(used, i)
		} else {
			unused = append(unused, i)
		}
	}
	return used, unused, nil
}

// resolveGenePair applies spec §4.L step 4 to one pair of overlapping
// genes belonging to different SCOs.
func resolveGenePair(
	exonLists map[geneKey][]ExonRecord,
	matches [2]PassMatches,
	passOf map[geneKey]int,
	priority, secondary geneKey,
	removed map[geneKey]map[int]bool,
	dropped map[geneKey]bool,
) error {
	priExons := exonLists[priority]
	secExons := exonLists[secondary]

	priEnv := envelopesFor(matches, passOf, priority)
	secEnv := envelopesFor(matches, passOf, secondary)

	priUsed, priUnused, err := findUnusedExons(priEnv, priExons)
	if err != nil {
		return err
	}
	secUsed, secUnused, err := findUnusedExons(secEnv, secExons)
	if err != nil {
		return err
	}

	union := recordsOf(priExons, priUsed, priority.SCO, 0)
	union = append(union, recordsOf(secExons, secUsed, secondary.SCO, len(union))...)
	if overlap.AnyOverlap(union) {
		dropped[secondary] = true
		return nil
	}

	removeSecondarySideOverlaps(priExons, priUnused, secExons, secUsed, priority, secondary, removed)
	removeSecondarySideOverlaps(priExons, priUsed, secExons, secUnused, priority, secondary, removed)
	removeSecondarySideOverlaps(priExons, priUnused, secExons, secUnused, priority, secondary, removed)

	return nil
}

func envelopesFor(matches [2]PassMatches, passOf map[geneKey]int, k geneKey) []domtbl.EnvCoord {
	pass := passOf[k]
	if pass < 1 || pass > 2 {
		return nil
	}
	m := matches[pass-1]
	if m == nil {
		return nil
	}
	sco, ok := m[k.SCO]
	if !ok {
		return nil
	}
	match, ok := sco[k.Gene]
	if !ok {
		return nil
	}
	return match.EnvCoords
}

func recordsOf(exons []ExonRecord, idx []int, sco string, startIndex int) []overlap.Record {
	out := make([]overlap.Record, 0, len(idx))
	for n, i := range idx {
		e := exons[i]
		out = append(out, overlap.Record{
			Contig: e.Contig, Strand: e.Strand, Low: e.Low, High: e.High,
			Group: sco, Index: startIndex + n,
		})
	}
	return out
}

// removeSecondarySideOverlaps finds overlaps between priority's exons
// (priIdx) and secondary's exons (secIdx) and marks the secondary-side
// exon of every overlapping pair for removal (spec §4.L step 4,
// get_indices_to_remove).
func removeSecondarySideOverlaps(
	priExons []ExonRecord, priIdx []int,
	secExons []ExonRecord, secIdx []int,
	priority, secondary geneKey,
	removed map[geneKey]map[int]bool,
) {
	if len(priIdx) == 0 || len(secIdx) == 0 {
		return
	}
	records := recordsOf(priExons, priIdx, priority.SCO, 0)
	records = append(records, recordsOf(secExons, secIdx, secondary.SCO, len(records))...)

	// recordsOf renumbers Index from 0; keep a parallel owner/origIdx map.
	type owner struct {
		key geneKey
		idx int
	}
	owners := make([]owner, 0, len(records))
	for _, i := range priIdx {
		owners = append(owners, owner{priority, i})
	}
	for _, i := range secIdx {
		owners = append(owners, owner{secondary, i})
	}

	for _, p := range overlap.FindPairs(records) {
		a, b := owners[p.A], owners[p.B]
		if a.key == b.key {
			continue // both exons from the same side
		}
		if a.key.SCO == secondary.SCO {
			markRemoved(removed, a.key, a.idx)
		}
		if b.key.SCO == secondary.SCO {
			markRemoved(removed, b.key, b.idx)
		}
	}
}

func markRemoved(removed map[geneKey]map[int]bool, k geneKey, idx int) {
	if removed[k] == nil {
		removed[k] = make(map[int]bool)
	}
	removed[k][idx] = true
}

// rebuild applies step 5: surviving exon records are regrouped, gene ids
// synthesized from the new exon envelope, and the classification updated
// in place.
func rebuild(c *classify.Classification, exonLists map[geneKey][]ExonRecord, removed map[geneKey]map[int]bool, dropped map[geneKey]bool) error {
	for key, exons := range exonLists {
		if dropped[key] {
			c.Remove(key.Rank, key.SCO, key.Gene)
			continue
		}

		var survivors []ExonRecord
		for i, e := range exons {
			if removed[key] != nil && removed[key][i] {
				continue
			}
			survivors = append(survivors, e)
		}

		if len(survivors) == 0 {
			c.Remove(key.Rank, key.SCO, key.Gene)
			continue
		}

		minLow, maxHigh := survivors[0].Low, survivors[0].High
		for _, e := range survivors[1:] {
			if e.Low < minLow {
				minLow = e.Low
			}
			if e.High > maxHigh {
				maxHigh = e.High
			}
		}
		newGeneID := fmt.Sprintf("%s:%d-%d", survivors[0].Contig, minLow, maxHigh)
		if newGeneID != key.Gene {
			c.Rename(key.Rank, key.SCO, key.Gene, newGeneID)
		}
	}
	return nil
}
