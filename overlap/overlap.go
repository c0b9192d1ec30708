// Package overlap implements the group-by-contig, sort-by-start,
// single-pass overlap scan shared by the Intra-pass Overlap Filter
// (spec §4.E) and the Exon Reconciler's cross-SCO overlap detection
// (spec §4.L step 3), plus an interval-tree-backed any-overlap check
// used by the reconciler's envelope-coverage resolution (spec §4.L
// step 4). The pairwise scan is grounded on the original Python
// test_for_overlaps; the tree check is grounded on the teacher's
// cullContained (cmd/ins/main.go, cmd/cull/main.go).
package overlap

import (
	"sort"

	"github.com/biogo/store/interval"
)

// Record is one interval subject to overlap detection: a genomic or
// protein span on a named contig and strand, owned by some group key
// (an SCO id, in both callers of this package) and carrying a score used
// to break overlap ties.
type Record struct {
	Contig string
	Strand byte
	Low    int
	High   int
	Group  string // SCO id
	Score  float64
	Index  int // position in the caller's original slice
}

// Pair is a pair of Record.Index values found to overlap.
type Pair struct {
	A, B int
}

// FindPairs groups records by (contig, strand), sorts each group
// ascending by Low, and emits an index pair (a, b) for every two records
// where b's Low lies strictly between a's Low and High (spec §4.E: "the
// second's low lies strictly between the first's low and high").
func FindPairs(records []Record) []Pair {
	groups := make(map[[2]interface{}][]Record)
	for _, r := range records {
		key := [2]interface{}{r.Contig, r.Strand}
		groups[key] = append(groups[key], r)
	}

	var pairs []Pair
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].Low < group[j].Low })
		for i, a := range group {
			for j := i + 1; j < len(group); j++ {
				b := group[j]
				if b.Low <= a.Low {
					continue
				}
				if b.Low >= a.High {
					break // sorted by Low: no further b can satisfy b.Low < a.High
				}
				pairs = append(pairs, Pair{A: a.Index, B: b.Index})
			}
		}
	}
	return pairs
}

// FilterIntraGroupOverlaps drops the lower-scoring of every pair of
// same-Group, same-(contig,strand) overlapping records (spec §4.E).
// Cross-group overlaps are left untouched for the caller (spec §4.L) to
// resolve. It is idempotent: a second call on its own output is a no-op
// (spec §8.8).
func FilterIntraGroupOverlaps(records []Record) []Record {
	dropped := make(map[int]bool)
	for _, p := range FindPairs(records) {
		a, b := records[p.A], records[p.B]
		if a.Group != b.Group {
			continue
		}
		if a.Score >= b.Score {
			dropped[b.Index] = true
		} else {
			dropped[a.Index] = true
		}
	}

	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if !dropped[r.Index] {
			kept = append(kept, r)
		}
	}
	return kept
}

// AnyOverlap reports whether any two records in the set overlap,
// regardless of group, using an interval tree exactly as the teacher's
// cullContained does (cmd/ins/main.go).
func AnyOverlap(records []Record) bool {
	if len(records) < 2 {
		return false
	}
	var tree interval.IntTree
	for i, r := range records {
		if err := tree.Insert(treeRecord{idx: uintptr(i), Record: r}, true); err != nil {
			panic(err)
		}
	}
	tree.AdjustRanges()
	for i, r := range records {
		hits := tree.Get(treeRecord{Record: r})
		for _, h := range hits {
			if h.(treeRecord).idx != uintptr(i) {
				return true
			}
		}
	}
	return false
}

type treeRecord struct {
	idx uintptr
	Record
}

func (t treeRecord) ID() uintptr { return t.idx }

func (t treeRecord) Range() interval.IntRange {
	return interval.IntRange{Start: t.Low, End: t.High}
}

func (t treeRecord) Overlap(b interval.IntRange) bool {
	return b.Start < t.High && t.Low < b.End
}
