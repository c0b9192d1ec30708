// The buscoaudit command allows the kv-backed audit trail written by
// buscogo (audit.db, in the -out directory) to be inspected after the
// fact. Each record is one
// surviving (SCO, gene) classification: which pass produced it, which
// rank it was filed under, and its bitscore and alignment length.
// Output is a JSON stream on stdout, one record per line, in the
// store's key order (pass, rank, SCO id, gene id, descending
// bitscore).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"modernc.org/kv"

	"github.com/vantage-genomics/buscogo/internal/store"
)

var rankName = map[int8]string{0: "Complete", 1: "VeryLarge", 2: "Fragmented"}

type record struct {
	Pass     int8    `json:"pass"`
	Rank     string  `json:"rank"`
	SCOID    string  `json:"sco_id"`
	GeneID   string  `json:"gene_id"`
	BitScore float64 `json:"bit_score"`
	Length   int64   `json:"length"`
	Frame    string  `json:"frame,omitempty"`
}

func main() {
	path := flag.String("db", "", "specify audit.db file to inspect (required)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %[1]s:\n  $ %[1]s -db <audit.db>\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *path == "" {
		flag.Usage()
		os.Exit(2)
	}

	opts := &kv.Options{Compare: store.ByPassRankSCOGene}
	db, err := kv.Open(*path, opts)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	enc := json.NewEncoder(os.Stdout)

	it, err := db.SeekFirst()
	if err != nil {
		if err == io.EOF {
			return
		}
		log.Fatal(err)
	}
	for {
		k, v, err := it.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Fatal(err)
		}
		r := store.UnmarshalKey(k)
		frame := ""
		if err := json.Unmarshal(v, &frame); err != nil {
			log.Fatal(err)
		}
		err = enc.Encode(record{
			Pass:     r.Pass,
			Rank:     rankName[r.Rank],
			SCOID:    r.SCOID,
			GeneID:   r.GeneID,
			BitScore: r.BitScore,
			Length:   r.Length,
			Frame:    frame,
		})
		if err != nil {
			log.Fatal(err)
		}
	}
}
