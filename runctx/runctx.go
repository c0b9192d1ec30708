// Package runctx carries the run-wide configuration and mutable state
// that spec.md §9 calls for as "an explicit context object threaded
// through every component, not process-wide state". cmd/buscogo builds
// and writes it, then copies the fields orchestrate needs into an
// orchestrate.Config; orchestrate.Run and the other packages do not take
// a RunContext.
package runctx

import "fmt"

// Mode selects the analysis strategy. Only ModeGenome is implemented by
// this repository; the others are named so Config round-trips the full
// external interface of spec §6, but selecting them is rejected by
// Config.Validate.
type Mode string

const (
	ModeGenome        Mode = "genome"
	ModeTranscriptome Mode = "transcriptome"
	ModeProteins      Mode = "proteins"
)

// Domain selects the clade-level analysis branch. Only DomainEukaryota is
// implemented; see Mode.
type Domain string

const (
	DomainEukaryota  Domain = "eukaryota"
	DomainProkaryota Domain = "prokaryota"
	DomainViruses    Domain = "viruses"
)

// Config enumerates the external configuration surface of spec §6. A
// real deployment's config-file/CLI-flag parsing populates this struct;
// that parsing is out of this repository's scope.
type Config struct {
	EValue                 float64
	Limit                  int
	MaxIntron              int
	MaxSeqLen              int
	MetaeukParameters      string
	MetaeukRerunParameters string
	CPU                    int
	Restart                bool
	Mode                   Mode
	Domain                 Domain
}

// Validate rejects configurations outside this repository's implemented
// scope (spec §1 Non-goals / §9 Polymorphism).
func (c Config) Validate() error {
	if c.Mode != ModeGenome {
		return fmt.Errorf("runctx: mode %q not implemented (only %q)", c.Mode, ModeGenome)
	}
	if c.Domain != DomainEukaryota {
		return fmt.Errorf("runctx: domain %q not implemented (only %q)", c.Domain, DomainEukaryota)
	}
	return nil
}

// RunContext is the per-run state threaded through the pipeline: the
// resolved configuration, filesystem locations, and the current pass
// number. It is not safe for concurrent mutation; only cmd/buscogo
// writes to it, before the pipeline starts.
type RunContext struct {
	Config Config

	GenomeFASTA string
	LineageDir  string
	OutDir      string
	ScratchDir  string
	KeepScratch bool

	// Pass is the 1-based index of the current predict/search/classify
	// iteration (spec §4.K). cmd/buscogo sets it to 1; orchestrate.Run
	// tracks its passes itself and does not update it.
	Pass int
}

// Workers returns the configured worker count, defaulting to 1 when unset
// or non-positive (spec §5: "the process supplies a worker count from
// configuration").
func (r *RunContext) Workers() int {
	if r.Config.CPU <= 0 {
		return 1
	}
	return r.Config.CPU
}
