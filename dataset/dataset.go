// Package dataset loads a lineage dataset's per-SCO cutoffs and
// reference protein database (spec §4.A). LoadCutoffs and LoadLinks are
// pure and idempotent: the same lineage directory always yields the same
// maps and they only read their input files. ReferenceProteins is the
// exception: it may write refseq_db.faa and remove refseq_db.faa.gz.
package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kgzip "github.com/klauspost/compress/gzip"

	"github.com/vantage-genomics/buscogo/buscoerr"
)

// Cutoff holds the per-SCO statistical thresholds used by the match
// classifier (spec §4.H) and the domain-table parser's score filter
// (spec §4.G).
type Cutoff struct {
	Length float64 // expected HMM-matched length, amino acids
	Sigma  float64 // sigma; never zero for an id in lengths_cutoff, see LoadCutoffs
	Score  float64 // minimum admissible bitscore
}

// Cutoffs maps SCO id to its cutoff record.
type Cutoffs map[string]Cutoff

// Link holds the optional OrthoDB description/url enrichment for one
// SCO, loaded from links_to_<VERSION>.txt when present (spec §4.M,
// SPEC_FULL item 1).
type Link struct {
	Description string
	URL         string
}

// Links maps SCO id to its optional enrichment.
type Links map[string]Link

const lengthsCutoffFile = "lengths_cutoff"
const scoresCutoffFile = "scores_cutoff"

// LoadCutoffs reads lengths_cutoff (id, _, sigma, length) and
// scores_cutoff (id, score) from lineageDir and joins them by id. Any IO
// failure or malformed row is fatal (buscoerr.DatasetInvalid), the
// offending row is included in the error.
func LoadCutoffs(lineageDir string) (Cutoffs, error) {
	cutoffs := make(Cutoffs)

	lengthsPath := filepath.Join(lineageDir, lengthsCutoffFile)
	f, err := os.Open(lengthsPath)
	if err != nil {
		return nil, buscoerr.New(buscoerr.DatasetInvalid, lengthsPath, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, buscoerr.New(buscoerr.DatasetInvalid, lengthsPath, errRow(line))
		}
		id := fields[0]
		sigma, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, buscoerr.New(buscoerr.DatasetInvalid, lengthsPath, errRow(line))
		}
		length, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, buscoerr.New(buscoerr.DatasetInvalid, lengthsPath, errRow(line))
		}
		// There is an arthropod profile with sigma 0 that would
		// otherwise crash the zeta calculation in classify.
		if sigma == 0 {
			sigma = 1
		}
		cutoffs[id] = Cutoff{Length: length, Sigma: sigma}
	}
	if err := sc.Err(); err != nil {
		return nil, buscoerr.New(buscoerr.DatasetInvalid, lengthsPath, err)
	}

	scoresPath := filepath.Join(lineageDir, scoresCutoffFile)
	sf, err := os.Open(scoresPath)
	if err != nil {
		return nil, buscoerr.New(buscoerr.DatasetInvalid, scoresPath, err)
	}
	defer sf.Close()

	sc = bufio.NewScanner(sf)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, buscoerr.New(buscoerr.DatasetInvalid, scoresPath, errRow(line))
		}
		id := fields[0]
		score, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, buscoerr.New(buscoerr.DatasetInvalid, scoresPath, errRow(line))
		}
		c := cutoffs[id]
		c.Score = score
		cutoffs[id] = c
	}
	if err := sc.Err(); err != nil {
		return nil, buscoerr.New(buscoerr.DatasetInvalid, scoresPath, err)
	}

	return cutoffs, nil
}

type errRow string

func (e errRow) Error() string { return "malformed row: " + string(e) }

// LoadLinks reads the optional links_to_<VERSION>.txt file
// (tab-delimited id, description, url). A missing file is not an error;
// it simply yields an empty Links map (spec §6).
func LoadLinks(lineageDir, datasetVersion string) (Links, error) {
	path := filepath.Join(lineageDir, "links_to_"+strings.ToUpper(datasetVersion)+".txt")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Links{}, nil
	}
	if err != nil {
		return nil, buscoerr.New(buscoerr.DatasetInvalid, path, err)
	}
	defer f.Close()

	links := make(Links)
	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, buscoerr.New(buscoerr.DatasetInvalid, path, err)
		}
		if len(row) < 3 {
			continue
		}
		links[row[0]] = Link{Description: row[1], URL: row[2]}
	}
	return links, nil
}

// ReferenceProteins opens the lineage's reference protein database,
// decompressing it in place exactly once when delivered as
// refseq_db.faa.gz (spec §5). The returned path always refers to an
// uncompressed FASTA file. The compressed original is best-effort
// removed after decompression; failure to remove it is logged, not
// returned, per spec §5.
func ReferenceProteins(lineageDir string) (string, error) {
	plain := filepath.Join(lineageDir, "refseq_db.faa")
	if _, err := os.Stat(plain); err == nil {
		return plain, nil
	}

	gz := plain + ".gz"
	in, err := os.Open(gz)
	if err != nil {
		return "", buscoerr.New(buscoerr.DatasetInvalid, gz, err)
	}
	defer in.Close()

	zr, err := kgzip.NewReader(in)
	if err != nil {
		return "", buscoerr.New(buscoerr.DatasetInvalid, gz, err)
	}
	defer zr.Close()

	out, err := os.Create(plain)
	if err != nil {
		return "", buscoerr.New(buscoerr.DatasetInvalid, plain, err)
	}
	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		return "", buscoerr.New(buscoerr.DatasetInvalid, plain, err)
	}
	if err := out.Close(); err != nil {
		return "", buscoerr.New(buscoerr.DatasetInvalid, plain, err)
	}

	if err := os.Remove(gz); err != nil {
		log.Printf("warning: failed to remove compressed reference %s: %v", gz, err)
	}

	return plain, nil
}
