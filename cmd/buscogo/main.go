// buscogo assesses genome completeness against a lineage dataset of
// single-copy orthologs, driving a two-pass ab-initio prediction and
// profile-search pipeline and writing a BUSCO-style results table.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/vantage-genomics/buscogo/orchestrate"
	"github.com/vantage-genomics/buscogo/report"
	"github.com/vantage-genomics/buscogo/runctx"
)

func main() {
	genome := flag.String("genome", "", "specify genome assembly FASTA file (required)")
	lineage := flag.String("lineage", "", "specify lineage dataset directory (required)")
	datasetVersion := flag.String("dataset-version", "odb10", "specify OrthoDB dataset version used to name the optional links file")
	out := flag.String("out", "", "specify output directory (required)")
	mode := flag.String("mode", string(runctx.ModeGenome), "specify input mode: genome, transcriptome or proteins (only genome is implemented)")
	domain := flag.String("domain", string(runctx.DomainEukaryota), "specify clade domain: eukaryota, prokaryota or viruses (only eukaryota is implemented)")
	predictorCmd := flag.String("predictor", "", "specify gene predictor executable (default metaeuk)")
	profileCmd := flag.String("profile-search", "", "specify profile search executable (default hmmsearch)")
	extra := flag.String("predictor-params", "", "specify extra predictor parameters, comma- or space-separated --key=value pairs")
	maxIntron := flag.Int("max-intron", 15000, "specify maximum intron length for the predictor")
	maxSeqLen := flag.Int("max-seq-len", 100000, "specify maximum sequence length for the predictor")
	threads := flag.Int("cores", 0, "specify the maximum number of cores to use (<=0 is use all cores)")
	profileWorkers := flag.Int("profile-workers", 0, "specify the number of concurrent profile search jobs (<=0 is use cores)")
	gff3 := flag.Bool("gff3", false, "specify to also write a GFF3 rendering of every matched gene")
	work := flag.Bool("work", false, "specify to keep temporary files")
	restart := flag.Bool("restart", false, "specify to reuse a fixed scratch directory so a previous run's intermediate files are kept there; completed work is not skipped")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %[1]s:
  $ %[1]s -genome <assembly.fa> -lineage <lineage_dir> -out <results_dir>

Options:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *genome == "" || *lineage == "" || *out == "" {
		flag.Usage()
		os.Exit(2)
	}

	threadCount := *threads
	if threadCount <= 0 {
		threadCount = runtime.NumCPU()
	}

	rc := &runctx.RunContext{
		Config: runctx.Config{
			MaxIntron:              *maxIntron,
			MaxSeqLen:              *maxSeqLen,
			MetaeukParameters:      *extra,
			MetaeukRerunParameters: *extra,
			CPU:                    threadCount,
			Restart:                *restart,
			Mode:                   runctx.Mode(*mode),
			Domain:                 runctx.Domain(*domain),
		},
		GenomeFASTA: *genome,
		LineageDir:  *lineage,
		OutDir:      *out,
		KeepScratch: *work,
	}
	if err := rc.Config.Validate(); err != nil {
		log.Fatal(err)
	}

	workers := *profileWorkers
	if workers <= 0 {
		workers = rc.Workers()
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatal(err)
	}

	scratch := filepath.Join(os.TempDir(), "buscogo-run")
	if !rc.Config.Restart {
		var err error
		scratch, err = ioutil.TempDir("", "buscogo-*")
		if err != nil {
			log.Fatal(err)
		}
	} else if err := os.MkdirAll(scratch, 0o755); err != nil {
		log.Fatal(err)
	}
	rc.ScratchDir = scratch
	rc.Pass = 1
	log.Printf("working in %s", scratch)
	if rc.KeepScratch {
		log.Println("keeping work")
	} else {
		defer os.RemoveAll(scratch)
	}

	cfg := orchestrate.Config{
		Genome:         rc.GenomeFASTA,
		LineageDir:     rc.LineageDir,
		DatasetVersion: *datasetVersion,
		OutDir:         rc.OutDir,
		ScratchDir:     rc.ScratchDir,
		PredictorCmd:   *predictorCmd,
		ProfileCmd:     *profileCmd,
		ExtraParams:    rc.Config.MetaeukParameters,
		MaxIntron:      rc.Config.MaxIntron,
		MaxSeqLen:      rc.Config.MaxSeqLen,
		Threads:        rc.Config.CPU,
		ProfileWorkers: workers,
		AuditDBPath:    filepath.Join(*out, "audit.db"),
		Logger:         log.Default(),
	}

	res, err := orchestrate.Run(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}

	allSCOIDs := make([]string, 0, len(res.Cutoffs))
	for id := range res.Cutoffs {
		allSCOIDs = append(allSCOIDs, id)
	}

	rows := report.Rows(res.Classification, allSCOIDs)
	if counts := report.Summarize(rows); counts.Total > 0 && counts.Missing == counts.Total {
		log.Println("warning: every SCO is missing")
	}
	meta := report.Meta{
		DatasetName:    filepath.Base(*lineage),
		DatasetVersion: *datasetVersion,
		GenomeName:     filepath.Base(*genome),
	}

	if err := report.WriteFullTable(*out, rows, res.Links, meta); err != nil {
		log.Fatal(err)
	}
	if err := report.WriteMissingList(*out, rows); err != nil {
		log.Fatal(err)
	}
	if err := report.WriteShortSummary(*out, rows, meta); err != nil {
		log.Fatal(err)
	}
	if err := report.WriteSequences(*out, rows, res.Sequences); err != nil {
		log.Fatal(err)
	}

	if *gff3 {
		f, err := os.Create(filepath.Join(*out, "genes.gff3"))
		if err != nil {
			log.Fatal(err)
		}
		if err := report.WriteGFF3(f, rows); err != nil {
			f.Close()
			log.Fatal(err)
		}
		f.Close()
	}

	log.Printf("done: %s", *out)
}
