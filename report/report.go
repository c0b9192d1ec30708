// Package report writes the genome-completeness run's output products
// (spec §4.M): the full results table, the missing-SCO list, the short
// summary, per-status sequence FASTA files, and an optional GFF3
// rendering of every matched gene. Grounded on the original hmmer.py's
// _format_output_lines/create_output_content/_list_missing_buscos for
// the table and summary formats, and on the teacher's gff.NewWriter
// usage in cmd/ins/main.go for the optional GFF3 output (a feature the
// distilled spec dropped but the original source and teacher both
// support).
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/biogo/io/featio/gff"
	"github.com/biogo/biogo/seq"

	"github.com/vantage-genomics/buscogo/classify"
	"github.com/vantage-genomics/buscogo/dataset"
)

// Status is one SCO's final completeness call, merging the classifier's
// three ranks down to BUSCO's four-way report vocabulary: very_large
// gets folded into Complete, and a Complete SCO claimed by more than one
// gene is reported Duplicated instead of Complete (spec §4.M).
type Status string

const (
	StatusComplete   Status = "Complete"
	StatusDuplicated Status = "Duplicated"
	StatusFragmented Status = "Fragmented"
	StatusMissing    Status = "Missing"
)

// Row is one line of the full results table.
type Row struct {
	SCOID  string
	Status Status
	GeneID string
	Score  float64
	Length int
}

// Meta carries run identification printed in the full table header and
// short summary.
type Meta struct {
	DatasetName    string
	DatasetVersion string
	GenomeName     string
}

// SequenceSource looks up a gene's predicted protein and coding
// sequence by id, supplied by the orchestrator from the predictor's
// pass 1/pass 2 output (spec §4.M SUPPLEMENTED FEATURES: per-gene
// sequence export).
type SequenceSource struct {
	Protein    map[string]string // gene id -> amino acid sequence
	Nucleotide map[string]string // gene id -> coding sequence
}

// Rows builds the full results table, one row per gene for
// complete/duplicated/fragmented SCOs and one placeholder row per
// missing SCO, sorted by the integer prefix of each SCO id (spec §4.M)
// then gene id for determinism.
func Rows(c *classify.Classification, allSCOIDs []string) []Row {
	ids := append([]string(nil), allSCOIDs...)
	sortSCOIDs(ids)

	var rows []Row
	for _, sco := range ids {
		if genes := c.Genes(classify.Complete, sco); len(genes) > 0 {
			rows = append(rows, geneRows(sco, genes, statusFor(len(genes)))...)
			continue
		}
		if genes := c.Genes(classify.VeryLarge, sco); len(genes) > 0 {
			rows = append(rows, geneRows(sco, genes, statusFor(len(genes)))...)
			continue
		}
		if genes := c.Genes(classify.Fragmented, sco); len(genes) > 0 {
			rows = append(rows, geneRows(sco, genes, StatusFragmented)...)
			continue
		}
		rows = append(rows, Row{SCOID: sco, Status: StatusMissing})
	}
	return rows
}

// sortSCOIDs orders ids by the integer prefix before "at" (spec §4.M:
// "sort the main table by the integer prefix of each SCO id"), e.g.
// "2at2759" before "10at2759". Ids that don't carry the usual
// "{n}at{taxid}" shape fall back to a lexicographic compare so they sort
// deterministically after every well-formed id rather than panicking.
func sortSCOIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		ni, oki := scoIDPrefix(ids[i])
		nj, okj := scoIDPrefix(ids[j])
		if oki && okj {
			if ni != nj {
				return ni < nj
			}
			return ids[i] < ids[j]
		}
		if oki != okj {
			return oki
		}
		return ids[i] < ids[j]
	})
}

// scoIDPrefix parses the digits before the first "at" in a SCO id.
func scoIDPrefix(id string) (int, bool) {
	at := strings.Index(id, "at")
	if at <= 0 {
		return 0, false
	}
	n, err := strconv.Atoi(id[:at])
	if err != nil {
		return 0, false
	}
	return n, true
}

func statusFor(nGenes int) Status {
	if nGenes > 1 {
		return StatusDuplicated
	}
	return StatusComplete
}

func geneRows(sco string, genes map[string][]classify.MatchRecord, status Status) []Row {
	ids := make([]string, 0, len(genes))
	for g := range genes {
		ids = append(ids, g)
	}
	sort.Strings(ids)

	rows := make([]Row, 0, len(ids))
	for _, g := range ids {
		best := genes[g][0]
		for _, r := range genes[g] {
			if r.BitScore > best.BitScore {
				best = r
			}
		}
		rows = append(rows, Row{SCOID: sco, Status: status, GeneID: g, Score: best.BitScore, Length: best.Length})
	}
	return rows
}

// WriteFullTable writes full_table.tsv: three comment lines identifying
// the run, then one tab-separated row per Row, enriched with the
// dataset's optional OrthoDB description/url (spec §4.M, §6).
func WriteFullTable(dir string, rows []Row, links dataset.Links, meta Meta) error {
	f, err := os.Create(filepath.Join(dir, "full_table.tsv"))
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "# BUSCO-style completeness table\n")
	fmt.Fprintf(f, "# Dataset: %s (%s)\n", meta.DatasetName, meta.DatasetVersion)
	fmt.Fprintf(f, "# Genome: %s\n", meta.GenomeName)
	fmt.Fprintln(f, "# Busco id\tStatus\tSequence\tGene Start\tGene End\tScore\tLength\tOrthoDB description\tOrthoDB url")

	for _, r := range rows {
		link := links[r.SCOID]
		sequence, start, end, score, length := "", "", "", "", ""
		if r.Status != StatusMissing {
			score = strconv.FormatFloat(r.Score, 'f', 1, 64)
			length = strconv.Itoa(r.Length)
			if contig, low, high, ok := parseGeneID(r.GeneID); ok {
				sequence, start, end = contig, strconv.Itoa(low), strconv.Itoa(high)
			}
		}
		fmt.Fprintf(f, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.SCOID, r.Status, sequence, start, end, score, length, link.Description, link.URL)
	}
	return nil
}

// WriteMissingList writes missing_busco_list.tsv: one SCO id per line
// for every Row with Status Missing (spec §4.M).
func WriteMissingList(dir string, rows []Row) error {
	f, err := os.Create(filepath.Join(dir, "missing_busco_list.tsv"))
	if err != nil {
		return err
	}
	defer f.Close()

	for _, r := range rows {
		if r.Status != StatusMissing {
			continue
		}
		fmt.Fprintln(f, r.SCOID)
	}
	return nil
}

// Counts summarizes the rows into the classic BUSCO tallies.
type Counts struct {
	Single, Duplicated, Fragmented, Missing, Total int
}

// Summarize computes Counts over the SCO-level (not gene-level)
// classification: a Duplicated SCO counts once regardless of how many
// genes claimed it.
func Summarize(rows []Row) Counts {
	seen := make(map[string]Status)
	for _, r := range rows {
		if _, ok := seen[r.SCOID]; !ok {
			seen[r.SCOID] = r.Status
		}
	}
	var c Counts
	for _, status := range seen {
		c.Total++
		switch status {
		case StatusComplete:
			c.Single++
		case StatusDuplicated:
			c.Duplicated++
		case StatusFragmented:
			c.Fragmented++
		case StatusMissing:
			c.Missing++
		}
	}
	return c
}

// WriteShortSummary writes short_summary.txt in the classic
// "C:n%[S:n%,D:n%],F:n%,M:n%,n:N" one-line form plus a detailed
// breakdown (spec §4.M, original create_output_content).
func WriteShortSummary(dir string, rows []Row, meta Meta) error {
	f, err := os.Create(filepath.Join(dir, "short_summary.txt"))
	if err != nil {
		return err
	}
	defer f.Close()

	c := Summarize(rows)
	pct := func(n int) float64 {
		if c.Total == 0 {
			return 0
		}
		return 100 * float64(n) / float64(c.Total)
	}
	complete := c.Single + c.Duplicated

	fmt.Fprintf(f, "# genome-completeness assessment\n")
	fmt.Fprintf(f, "# Dataset: %s (%s)\n", meta.DatasetName, meta.DatasetVersion)
	fmt.Fprintf(f, "# Genome: %s\n\n", meta.GenomeName)
	fmt.Fprintf(f, "C:%.1f%%[S:%.1f%%,D:%.1f%%],F:%.1f%%,M:%.1f%%,n:%d\n\n",
		pct(complete), pct(c.Single), pct(c.Duplicated), pct(c.Fragmented), pct(c.Missing), c.Total)
	fmt.Fprintf(f, "%d\tComplete BUSCOs (C)\n", complete)
	fmt.Fprintf(f, "%d\tComplete and single-copy BUSCOs (S)\n", c.Single)
	fmt.Fprintf(f, "%d\tComplete and duplicated BUSCOs (D)\n", c.Duplicated)
	fmt.Fprintf(f, "%d\tFragmented BUSCOs (F)\n", c.Fragmented)
	fmt.Fprintf(f, "%d\tMissing BUSCOs (M)\n", c.Missing)
	fmt.Fprintf(f, "%d\tTotal BUSCO groups searched\n", c.Total)
	return nil
}

// WriteSequences writes busco_sequences/{single_copy,multi_copy,fragmented}/<sco_id>.faa
// and the matching .fna, one record per gene, for every row whose
// sequence is available in src. Missing sequences are skipped without
// logging, not treated as an error, and a file left with no record is
// removed (spec §4.M).
func WriteSequences(dir string, rows []Row, src SequenceSource) error {
	dirs := map[Status]string{
		StatusComplete:   "single_copy",
		StatusDuplicated: "multi_copy",
		StatusFragmented: "fragmented",
	}
	for _, sub := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, "busco_sequences", sub), 0o755); err != nil {
			return err
		}
	}

	byCategory := make(map[string]map[string][]Row) // subdir -> sco -> rows
	for _, r := range rows {
		sub, ok := dirs[r.Status]
		if !ok {
			continue
		}
		if byCategory[sub] == nil {
			byCategory[sub] = make(map[string][]Row)
		}
		byCategory[sub][r.SCOID] = append(byCategory[sub][r.SCOID], r)
	}

	for sub, scos := range byCategory {
		for sco, scoRows := range scos {
			if err := writeSCOFasta(filepath.Join(dir, "busco_sequences", sub, sco+".faa"), scoRows, src.Protein); err != nil {
				return err
			}
			if err := writeSCOFasta(filepath.Join(dir, "busco_sequences", sub, sco+".fna"), scoRows, src.Nucleotide); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSCOFasta(path string, rows []Row, seqs map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	wrote := false
	for _, r := range rows {
		s, ok := seqs[r.GeneID]
		if !ok {
			continue
		}
		wrote = true
		fmt.Fprintf(f, ">%s\n", r.GeneID)
		writeWrapped(f, s, 60)
	}
	if !wrote {
		os.Remove(path)
	}
	return nil
}

func writeWrapped(w io.Writer, s string, width int) {
	for i := 0; i < len(s); i += width {
		end := i + width
		if end > len(s) {
			end = len(s)
		}
		fmt.Fprintln(w, s[i:end])
	}
}

// WriteGFF3 renders every complete/duplicated/fragmented gene as a GFF3
// feature, recovering its genomic coordinates from the "contig:low-high"
// gene id (spec §3, SUPPLEMENTED FEATURES: the original emits a
// coordinate-bearing table but no GFF; the teacher's own repeat-finder
// always emits one, so the same idiom is extended here as an optional
// output). Genes whose id cannot be parsed back into coordinates are
// skipped with no error, since sequence export does not depend on it.
func WriteGFF3(w io.Writer, rows []Row) error {
	enc := gff.NewWriter(w, 60, true)
	for _, r := range rows {
		if r.Status == StatusMissing {
			continue
		}
		contig, low, high, ok := parseGeneID(r.GeneID)
		if !ok {
			continue
		}
		score := r.Score
		_, err := enc.Write(&gff.Feature{
			SeqName:    contig,
			Source:     "buscogo",
			Feature:    "gene",
			FeatStart:  low,
			FeatEnd:    high,
			FeatScore:  &score,
			FeatStrand: seq.Strand(1),
			FeatFrame:  gff.NoFrame,
			FeatAttributes: gff.Attributes{{
				Tag:   "busco_id",
				Value: fmt.Sprintf("%s %s", r.SCOID, r.Status),
			}},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// parseGeneID reverses header.Gene.ID's "{contig}:{low}-{high}" format.
func parseGeneID(id string) (contig string, low, high int, ok bool) {
	colon := strings.LastIndexByte(id, ':')
	if colon < 0 {
		return "", 0, 0, false
	}
	contig = id[:colon]
	span := id[colon+1:]
	dash := strings.LastIndexByte(span, '-')
	if dash < 0 {
		return "", 0, 0, false
	}
	low, err := strconv.Atoi(span[:dash])
	if err != nil {
		return "", 0, 0, false
	}
	high, err = strconv.Atoi(span[dash+1:])
	if err != nil {
		return "", 0, 0, false
	}
	return contig, low, high, true
}
