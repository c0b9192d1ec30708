// The buscocmp program compares the gene calls in two full_table.tsv
// reports produced by buscogo. Each matched SCO contributes a genomic
// interval (from its Sequence, Gene Start and Gene End columns) and a
// status; buscocmp walks the union of
// those intervals per contig and reports, in bases, how much of the
// genome both runs call the same status, how much only one run
// annotated, and how much they disagree on. The result is emitted as a
// JSON object on stdout.
//
// If a dot flag is provided, a graph of the status transitions between
// the two runs, with edge weights in bases, is written in DOT format.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/store/step"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

func main() {
	aFile := flag.String("a", "", "specify the first full_table.tsv (required)")
	bFile := flag.String("b", "", "specify the second full_table.tsv (required)")
	out := flag.String("dot", "", "specify prefix for a DOT file describing status disagreements")
	none := flag.String("none", "none", "specify label for 'no call'")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %[1]s:\n  $ %[1]s -a <full_table.tsv> -b <full_table.tsv>\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *aFile == "" || *bFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	contigs := make(map[string]*step.Vector)
	if err := readCalls(*aFile, func(contig string, low, high int, status string, score float64) error {
		return apply(contigs, contig, low, high, func(p pair) pair {
			if score > p.aScore {
				p.a, p.aScore = status, score
			}
			return p
		})
	}); err != nil {
		log.Fatal(err)
	}
	if err := readCalls(*bFile, func(contig string, low, high int, status string, score float64) error {
		return apply(contigs, contig, low, high, func(p pair) pair {
			if score > p.bScore {
				p.b, p.bScore = status, score
			}
			return p
		})
	}); err != nil {
		log.Fatal(err)
	}

	var chroms []string
	for c := range contigs {
		chroms = append(chroms, c)
	}
	sort.Strings(chroms)

	var (
		agree      int
		aMissing   int
		bMissing   int
		mismatch   int
		mismatches = make(map[names]int)
	)
	for _, chr := range chroms {
		contigs[chr].Do(func(start, end int, e step.Equaler) {
			p := e.(pair)
			if p.isZero() {
				return
			}
			n := end - start
			switch {
			case p.a == p.b:
				agree += n
			case p.a == "":
				aMissing += n
				mismatches[names{a: "", b: p.b}] += n
			case p.b == "":
				bMissing += n
				mismatches[names{a: p.a, b: ""}] += n
			default:
				mismatch += n
				mismatches[p.names] += n
			}
		})
	}

	type record struct {
		Agree    int `json:"agree"`
		AMissing int `json:"a-missing"`
		BMissing int `json:"b-missing"`
		Mismatch int `json:"mismatch"`
	}
	m, err := json.Marshal(record{Agree: agree, AMissing: aMissing, BMissing: bMissing, Mismatch: mismatch})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s\n", m)

	if *out != "" {
		if err := dotOut(*out+".dot", *aFile, *bFile, mismatches, *none); err != nil {
			log.Fatal(err)
		}
	}
}

// pair is a step vector element carrying the two runs' best-scoring
// status call for a base.
type pair struct {
	names
	aScore, bScore float64
}

type names struct{ a, b string }

func (p pair) isZero() bool             { return p.names == names{} }
func (p pair) Equal(e step.Equaler) bool { return p.names == e.(pair).names }

func apply(contigs map[string]*step.Vector, contig string, low, high int, fn func(pair) pair) error {
	v, ok := contigs[contig]
	if !ok {
		var err error
		v, err = step.New(0, 1, pair{})
		if err != nil {
			return err
		}
		v.Relaxed = true
		contigs[contig] = v
	}
	return v.ApplyRange(low, high, func(e step.Equaler) step.Equaler {
		return fn(e.(pair))
	})
}

// readCalls scans a full_table.tsv, skipping comment and missing rows,
// and invokes fn with every matched gene's contig, interval, status and
// score.
func readCalls(path string, fn func(contig string, low, high int, status string, score float64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 6 {
			return fmt.Errorf("%s: malformed row: %q", path, line)
		}
		status, contig, scoreField := fields[1], fields[2], fields[5]
		if status == "Missing" || contig == "" {
			continue
		}
		low, errLow := strconv.Atoi(fields[3])
		high, errHigh := strconv.Atoi(fields[4])
		if errLow != nil || errHigh != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreField, 64)
		if err != nil {
			return fmt.Errorf("%s: malformed score %q: %w", path, scoreField, err)
		}
		if err := fn(contig, low, high, status, score); err != nil {
			return err
		}
	}
	return sc.Err()
}

// parseGeneID decodes the contig:low-high gene id format report.Rows
// carries in memory. full_table.tsv splits that id into separate
// columns, so readCalls does not use it.
func parseGeneID(id string) (contig string, low, high int, ok bool) {
	colon := strings.LastIndexByte(id, ':')
	if colon < 0 {
		return "", 0, 0, false
	}
	dash := strings.IndexByte(id[colon+1:], '-')
	if dash < 0 {
		return "", 0, 0, false
	}
	lowStr := id[colon+1 : colon+1+dash]
	highStr := id[colon+1+dash+1:]
	lo, err := strconv.Atoi(lowStr)
	if err != nil {
		return "", 0, 0, false
	}
	hi, err := strconv.Atoi(highStr)
	if err != nil {
		return "", 0, 0, false
	}
	return id[:colon], lo, hi, true
}

func dotOut(path, aFile, bFile string, edges map[names]int, none string) error {
	g := newNameGraph(none)
	for p, w := range edges {
		e := edge{
			f: g.nodeFor(aFile, p.a),
			t: g.nodeFor(bFile, p.b),
			w: float64(w),
		}
		g.SetWeightedEdge(e)
	}
	b, err := dot.Marshal(g, "discord", "", "\t")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, b, 0o664)
}

type nameGraph struct {
	*simple.WeightedUndirectedGraph
	idFor map[string]int64
	none  string
}

func newNameGraph(none string) nameGraph {
	return nameGraph{
		WeightedUndirectedGraph: simple.NewWeightedUndirectedGraph(0, 0),
		idFor:                   make(map[string]int64),
		none:                    none,
	}
}

func (g nameGraph) nodeFor(file, s string) graph.Node {
	if s == "" {
		s = g.none
	}
	s = file + ":" + s
	id, ok := g.idFor[s]
	if ok {
		return g.Node(id)
	}
	id = g.WeightedUndirectedGraph.NewNode().ID()
	g.idFor[s] = id
	n := node{id: id, name: s}
	g.AddNode(n)
	return n
}

type node struct {
	id   int64
	name string
}

func (n node) ID() int64     { return n.id }
func (n node) DOTID() string { return n.name }

type edge struct {
	f, t graph.Node
	w    float64
}

func (e edge) From() graph.Node         { return e.f }
func (e edge) To() graph.Node           { return e.t }
func (e edge) ReversedEdge() graph.Edge { return edge{f: e.t, t: e.f, w: e.w} }
func (e edge) Weight() float64          { return e.w }
func (e edge) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "weight", Value: fmt.Sprint(e.w)}}
}
