// Package profile drives the external profile-search tool (hmmsearch),
// enqueuing one job per SCO id and fanning them out across a bounded
// worker pool (spec §4.F), grounded on the teacher's job-per-target loop
// in cmd/ins/blast.go's runBlastTabular and blast.Nucleic's tagged
// command construction, with the fan-out itself built on
// golang.org/x/sync/errgroup as the rest of the example pack does.
package profile

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/biogo/external"
	"golang.org/x/sync/errgroup"

	"github.com/vantage-genomics/buscogo/buscoerr"
	"github.com/vantage-genomics/buscogo/dataset"
)

// Options mirrors one hmmsearch invocation as a tagged struct.
type Options struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}hmmsearch{{end}}"`

	DomTblOut string `buildarg:"--domtblout{{split}}{{.}}"`
	CPU       int    `buildarg:"--cpu{{split}}{{.}}"`

	HMMFile string `buildarg:"{{.}}"`
	SeqFile string `buildarg:"{{.}}"`
}

func (o Options) args() []string {
	return external.Must(external.Build(o))
}

// Job is one SCO's profile search: its HMM file, the sequence file to
// search, and the path to write the domain table to.
type Job struct {
	SCOID     string
	HMMFile   string
	SeqFile   string
	OutputTbl string
}

// Jobs builds one Job per SCO id with a cutoff entry, writing to
// <resultsDir>/<sco_id>.out (spec §4.F). HMM files are read from
// <lineageDir>/hmms/<sco_id>.hmm as the teacher's profile search
// configure_job does.
func Jobs(scoIDs []string, cutoffs dataset.Cutoffs, lineageDir, seqFile, resultsDir string) []Job {
	jobs := make([]Job, 0, len(scoIDs))
	for _, id := range scoIDs {
		if _, ok := cutoffs[id]; !ok {
			continue
		}
		jobs = append(jobs, Job{
			SCOID:     id,
			HMMFile:   filepath.Join(lineageDir, "hmms", id+".hmm"),
			SeqFile:   seqFile,
			OutputTbl: filepath.Join(resultsDir, id+".out"),
		})
	}
	return jobs
}

// Run executes every job, bounded to workers concurrent hmmsearch
// processes, each pinned to one CPU as the teacher pins every HMMER job
// (spec §5: workers write only to their own output path). It returns the
// first error encountered, cancelling the remaining jobs.
func Run(ctx context.Context, jobs []Job, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			o := Options{DomTblOut: j.OutputTbl, CPU: 1, HMMFile: j.HMMFile, SeqFile: j.SeqFile}
			args := o.args()
			cmd := exec.CommandContext(ctx, args[0], args[1:]...)
			if err := cmd.Run(); err != nil {
				return buscoerr.New(buscoerr.PredictorAbsent, j.SCOID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Version queries the profile search binary's self-reported version,
// grounded on the teacher's pattern of shelling out with -h/--version
// and scanning the first matching line.
func Version(cmd string) (string, error) {
	if cmd == "" {
		cmd = "hmmsearch"
	}
	out, err := exec.Command(cmd, "-h").CombinedOutput()
	if err != nil {
		return "", buscoerr.New(buscoerr.PredictorAbsent, cmd, err)
	}
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, "HMMER") {
			fields := strings.Fields(line)
			for _, f := range fields {
				if strings.HasPrefix(f, "3.") || strings.HasPrefix(f, "2.") {
					return f, nil
				}
			}
		}
	}
	return "", buscoerr.New(buscoerr.PredictorAbsent, cmd, fmt.Errorf("version string not found"))
}
