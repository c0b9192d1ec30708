// Package domtbl parses HMMER-style --domtblout domain table files into
// per-gene match records (spec §4.G), grounded on the original
// parse_hmmer_output. Like header, the column layout is an external
// tool's own fixed-width micro-format with no existing parser in the
// ecosystem, so it is hand-written in the same style as the teacher's
// BLAST tabular parser.
package domtbl

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/vantage-genomics/buscogo/buscoerr"
	"github.com/vantage-genomics/buscogo/dataset"
)

// EnvCoord is one envelope coordinate pair reported for a domain hit.
type EnvCoord struct {
	Start, End int
}

// Match aggregates every domain hit for one predicted gene against one
// SCO's profile: the HMM-matched length summed across hits, every hit's
// envelope coordinates (consumed later by the exon reconciler, spec
// §4.L), and the gene's reported bitscore and target length.
type Match struct {
	GeneID    string
	TargetLen int
	HMMLen    int
	Score     float64
	Frame     string // non-empty only in transcriptome mode
	EnvCoords []EnvCoord
}

// Parse reads a --domtblout file and returns one Match per gene id,
// discarding any hit whose bitscore falls below the SCO's score cutoff
// (spec §4.G). Column indices follow HMMER's domtblout layout: gene id
// (0), target length (2), bitscore (7), hmm coords (15-16), envelope
// coords (19-20), optional frame tag (last field, transcriptome mode).
func Parse(r io.Reader, scoID string, cutoffs dataset.Cutoffs) (map[string]*Match, error) {
	cutoff, ok := cutoffs[scoID]
	if !ok {
		return nil, buscoerr.New(buscoerr.DatasetInvalid, scoID, nil)
	}

	matches := make(map[string]*Match)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 21 {
			return nil, buscoerr.New(buscoerr.DomainTableMalformed, line, nil)
		}

		geneID := fields[0]
		tlen, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, buscoerr.New(buscoerr.DomainTableMalformed, line, err)
		}
		score, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return nil, buscoerr.New(buscoerr.DomainTableMalformed, line, err)
		}
		if score < cutoff.Score {
			continue
		}

		var frame string
		if last := fields[len(fields)-1]; strings.Contains(last, "frame") {
			frame = last
		}

		hmmStart, err := strconv.Atoi(fields[15])
		if err != nil {
			return nil, buscoerr.New(buscoerr.DomainTableMalformed, line, err)
		}
		hmmEnd, err := strconv.Atoi(fields[16])
		if err != nil {
			return nil, buscoerr.New(buscoerr.DomainTableMalformed, line, err)
		}
		envStart, err := strconv.Atoi(fields[19])
		if err != nil {
			return nil, buscoerr.New(buscoerr.DomainTableMalformed, line, err)
		}
		envEnd, err := strconv.Atoi(fields[20])
		if err != nil {
			return nil, buscoerr.New(buscoerr.DomainTableMalformed, line, err)
		}

		m, ok := matches[geneID]
		if !ok {
			m = &Match{GeneID: geneID, TargetLen: tlen, Score: score, Frame: frame}
			matches[geneID] = m
		}
		m.HMMLen += hmmEnd - hmmStart
		m.EnvCoords = append(m.EnvCoords, EnvCoord{Start: envStart, End: envEnd})
	}
	if err := sc.Err(); err != nil {
		return nil, buscoerr.New(buscoerr.DomainTableMalformed, "", err)
	}
	return matches, nil
}
