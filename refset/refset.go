// Package refset builds the pruned reference protein set used by the
// orchestrator's second pass (spec §4.B), grounded on the original
// MetaeukRunner._extract_incomplete_buscos_ancestral and the teacher's
// FASTA scanning idiom in cmd/ins/fragment.go's split.
package refset

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// Build reads the unfiltered reference protein database from src and
// writes, to dst, every record whose id begins with one of retain
// (optionally followed by an "_<variant>" suffix), with that suffix
// stripped from the written id. Requested ids with no matching record
// are logged at debug level, not treated as an error (spec §4.B).
func Build(dst io.Writer, src io.Reader, retain []string) error {
	retrieved := make(map[string]bool, len(retain))

	sc := seqio.NewScanner(fasta.NewReader(src, linear.NewSeq("", nil, alphabet.Protein)))
	for sc.Next() {
		seq := sc.Seq().(*linear.Seq)
		id := seq.ID
		for _, want := range retain {
			if !strings.HasPrefix(id, want) {
				continue
			}
			if len(id) > len(want) && id[len(want)] != '_' {
				continue
			}
			seq.ID = want
			retrieved[want] = true
			if _, err := fmt.Fprintf(dst, "%60a\n", seq); err != nil {
				return err
			}
			break
		}
	}
	if err := sc.Error(); err != nil {
		return err
	}

	for _, want := range retain {
		if !retrieved[want] {
			log.Printf("debug: no reference sequence found for %s", want)
		}
	}
	return nil
}
