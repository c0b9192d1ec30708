package profile

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vantage-genomics/buscogo/dataset"
)

func TestJobsSkipsSCOsWithoutCutoff(t *testing.T) {
	cutoffs := dataset.Cutoffs{"1at2759": {Length: 100, Sigma: 10, Score: 50}}
	jobs := Jobs([]string{"1at2759", "2at2759"}, cutoffs, "/lineage", "seqs.faa", "/results")
	require.Len(t, jobs, 1)
	require.Equal(t, "1at2759", jobs[0].SCOID)
	require.Equal(t, "/lineage/hmms/1at2759.hmm", jobs[0].HMMFile)
	require.Equal(t, "/results/1at2759.out", jobs[0].OutputTbl)
}

func TestJobsEmptyWhenNoSCOsMatch(t *testing.T) {
	jobs := Jobs([]string{"nope"}, dataset.Cutoffs{}, "/lineage", "seqs.faa", "/results")
	require.Empty(t, jobs)
}

func TestOptionsArgsIncludesFixedCPU(t *testing.T) {
	o := Options{DomTblOut: "/out/1at2759.out", CPU: 1, HMMFile: "/hmm/1at2759.hmm", SeqFile: "seqs.faa"}
	args := o.args()
	require.Contains(t, args, "--cpu")
	require.Contains(t, args, "--domtblout")
	require.Equal(t, "seqs.faa", args[len(args)-1])
}
