package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCutoffsJoinsByID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, lengthsCutoffFile, "123at2759\t0\t20.5\t400\n456at2759\t0\t0\t250\n")
	writeFile(t, dir, scoresCutoffFile, "123at2759\t50\n456at2759\t80\n")

	cutoffs, err := LoadCutoffs(dir)
	require.NoError(t, err)
	require.Equal(t, Cutoff{Length: 400, Sigma: 20.5, Score: 50}, cutoffs["123at2759"])
	// sigma 0 in the source file is substituted with 1 (spec §8.10).
	require.Equal(t, Cutoff{Length: 250, Sigma: 1, Score: 80}, cutoffs["456at2759"])
}

func TestLoadCutoffsMalformedRowIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, lengthsCutoffFile, "123at2759 not-enough-fields\n")
	writeFile(t, dir, scoresCutoffFile, "123at2759\t50\n")

	_, err := LoadCutoffs(dir)
	require.Error(t, err)
}

func TestLoadLinksMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	links, err := LoadLinks(dir, "odb10")
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestLoadLinksParsesPresentFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "links_to_ODB10.txt", "123at2759\tSome description\thttps://example.org/123\n")
	links, err := LoadLinks(dir, "odb10")
	require.NoError(t, err)
	require.Equal(t, Link{Description: "Some description", URL: "https://example.org/123"}, links["123at2759"])
}
