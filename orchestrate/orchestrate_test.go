package orchestrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vantage-genomics/buscogo/classify"
)

func TestMissingOrFragmentedExcludesCompleteAndVeryLarge(t *testing.T) {
	c := classify.New()
	c.Add(classify.Complete, "1at2759", "g1", classify.MatchRecord{BitScore: 200})
	c.Add(classify.VeryLarge, "2at2759", "g2", classify.MatchRecord{BitScore: 150})
	c.Add(classify.Fragmented, "3at2759", "g3", classify.MatchRecord{BitScore: 60})

	rerun := missingOrFragmented(c, []string{"1at2759", "2at2759", "3at2759", "4at2759"})
	require.ElementsMatch(t, []string{"3at2759", "4at2759"}, rerun)
}

func TestLoadHeadersParsesEveryLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pass1.headers.tsv")
	content := "T1|contig1|+|120.5|1e-20|1|10|30|10[10]:30[30]:21[21]\n" +
		"T1|contig2|-|99.0|1e-10|1|5|20|5[20]:20[5]:16[16]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	headers, err := loadHeaders(path)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	require.Contains(t, headers, "contig1:10-30")
}

func TestLoadHeadersMissingFileErrors(t *testing.T) {
	_, err := loadHeaders(filepath.Join(t.TempDir(), "nope.headers.tsv"))
	require.Error(t, err)
}

func TestBuildRerunSetWritesRetainedOnly(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "refseq_db.faa")
	require.NoError(t, os.WriteFile(src, []byte(">1at2759_1 d\nMKV\n>2at2759 d\nMKL\n"), 0o644))

	dst := filepath.Join(dir, "pass2-refset.faa")
	require.NoError(t, buildRerunSet(src, dst, []string{"1at2759"}))

	out, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Contains(t, string(out), ">1at2759 ")
	require.NotContains(t, string(out), "2at2759")
}
