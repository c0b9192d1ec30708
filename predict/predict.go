// Package predict drives the external ab-initio gene predictor (spec
// §4.C), grounded on the teacher's blast.Nucleic/blast.MakeDB tagged
// command builders (blast/blast.go) and the original MetaeukRunner's
// configure_job/parse_parameters.
package predict

import (
	"bufio"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"

	"github.com/biogo/external"

	"github.com/vantage-genomics/buscogo/buscoerr"
)

// Pass distinguishes the orchestrator's first genome-wide prediction run
// from its second, SCO-targeted rerun (spec §4.K).
type Pass int

const (
	PassInitial Pass = 1
	PassRerun   Pass = 2
)

// Options mirrors the predictor's full command line as a tagged struct,
// built with github.com/biogo/external exactly as the teacher's
// blast.Nucleic does.
type Options struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}metaeuk{{end}}"`

	Mode    string `buildarg:"{{.}}"`                                     // easy-predict
	Threads int    `buildarg:"{{if .}}--threads{{split}}{{.}}{{end}}"`    // --threads <n>

	InputGenome       string `buildarg:"{{.}}"`
	ReferenceProteins string `buildarg:"{{.}}"`
	OutputBasename    string `buildarg:"{{.}}"`
	ScratchDir        string `buildarg:"{{.}}"`

	MaxIntron  int `buildarg:"{{if .}}--max-intron{{split}}{{.}}{{end}}"`
	MaxSeqLen  int `buildarg:"{{if .}}--max-seq-len{{split}}{{.}}{{end}}"`
	MinExonAA  int `buildarg:"--min-exon-aa{{split}}{{.}}"`
	MaxOverlap int `buildarg:"--max-overlap{{split}}{{.}}"`
	MinIntron  int `buildarg:"--min-intron{{split}}{{.}}"`
	Overlap    int `buildarg:"--overlap{{split}}{{.}}"`

	Sensitivity int `buildarg:"{{if .}}-s{{split}}{{.}}{{end}}"` // omitted when 0

	// ExtraFlags holds allow-listed user parameters not covered by a
	// typed field above, already formatted as "--key value" pairs.
	ExtraFlags string
}

// BuildCommand renders Options into an *exec.Cmd.
func (o Options) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(o))
	var extra []string
	if o.ExtraFlags != "" {
		extra = strings.Fields(o.ExtraFlags)
	}
	return exec.Command(cl[0], append(cl[1:], extra...)...), nil
}

// fixedOptions are the six predictor parameters that the orchestrator
// sets by default and that a user's extra parameters may override (spec
// §4.C); -s is the seventh, pass-2-only option and is handled
// separately since it has no pass-1 default.
var fixedOptions = map[string]bool{
	"min-exon-aa": true,
	"max-overlap": true,
	"min-intron":  true,
	"overlap":     true,
	"max-intron":  true,
	"max-seq-len": true,
}

// allowedExtraParams is the allow-list of parameter names the predictor
// exposes beyond the fixed option set (spec §4.C), a representative
// subset of MetaeukRunner.ACCEPTED_PARAMETERS.
var allowedExtraParams = map[string]bool{
	"comp-bias-corr": true, "add-self-matches": true, "seed-sub-mat": true,
	"s": true, "k": true, "k-score": true, "alph-size": true,
	"max-seqs": true, "split": true, "split-mode": true,
	"min-ungapped-score": true, "e": true, "min-seq-id": true,
	"c": true, "cov-mode": true, "realign": true, "max-rejected": true,
	"gap-open": true, "gap-extend": true, "translation-table": true,
	"min-length": true, "max-length": true, "sub-mat": true,
	"force-reuse": true, "remove-tmp-files": true, "v": true,
}

// Defaults returns the default Options for the given pass, before any
// user overrides are applied (spec §4.C table).
func Defaults(pass Pass, inputGenome, referenceProteins, outputBasename, scratchDir string, maxIntron, maxSeqLen, threads int) Options {
	o := Options{
		Mode:              "easy-predict",
		Threads:           threads,
		InputGenome:       inputGenome,
		ReferenceProteins: referenceProteins,
		OutputBasename:    outputBasename,
		ScratchDir:        scratchDir,
		MaxIntron:         maxIntron,
		MaxSeqLen:         maxSeqLen,
		Overlap:           1,
	}
	if pass == PassRerun {
		o.MinExonAA = 5
		o.MaxOverlap = 5
		o.MinIntron = 1
		o.Sensitivity = 6
	} else {
		o.MinExonAA = 15
		o.MaxOverlap = 15
		o.MinIntron = 5
	}
	return o
}

// ApplyExtraParams parses a comma- or space-joined "--key=value" string
// and applies any fixed-option override, plus an allow-listed extra
// flags string, onto o. Unknown keys are skipped with a warning;
// malformed input discards the entire extras string with one warning
// (spec §4.C).
func ApplyExtraParams(o Options, raw string) Options {
	raw = strings.Trim(raw, "\"' ")
	if raw == "" {
		return o
	}
	raw = strings.ReplaceAll(raw, ",", " ")
	if !strings.HasPrefix(raw, "-") {
		log.Printf("warning: malformed extra predictor parameters %q, discarding", raw)
		return o
	}

	orig := o
	var extras []string
	tokens := strings.Split(raw, " -")
	for _, tok := range tokens {
		tok = strings.TrimLeft(tok, "- ")
		if tok == "" {
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			log.Printf("warning: malformed extra predictor parameters %q, discarding", raw)
			return orig
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])

		if fixedOptions[key] {
			n, err := strconv.Atoi(val)
			if err != nil {
				log.Printf("warning: non-numeric value for %q, skipping", key)
				continue
			}
			switch key {
			case "min-exon-aa":
				o.MinExonAA = n
			case "max-overlap":
				o.MaxOverlap = n
			case "min-intron":
				o.MinIntron = n
			case "overlap":
				o.Overlap = n
			case "max-intron":
				o.MaxIntron = n
			case "max-seq-len":
				o.MaxSeqLen = n
			}
			continue
		}
		if key == "s" {
			n, err := strconv.Atoi(val)
			if err == nil {
				o.Sensitivity = n
			}
			continue
		}
		if !allowedExtraParams[key] {
			log.Printf("warning: unrecognized predictor parameter %q, skipping", key)
			continue
		}
		dashes := "-"
		if len(key) > 1 {
			dashes = "--"
		}
		extras = append(extras, dashes+key, val)
	}
	o.ExtraFlags = strings.Join(extras, " ")
	return o
}

// Version queries the predictor binary's self-reported version string,
// grounded on MetaeukRunner.get_version.
func Version(cmd string) (string, error) {
	if cmd == "" {
		cmd = "metaeuk"
	}
	out, err := exec.Command(cmd, "-h").CombinedOutput()
	if err != nil {
		return "", buscoerr.New(buscoerr.PredictorAbsent, cmd, err)
	}
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "metaeuk Version:") {
			fields := strings.Fields(line)
			return fields[len(fields)-1], nil
		}
	}
	return "", buscoerr.New(buscoerr.PredictorAbsent, cmd, fmt.Errorf("version string not found"))
}
