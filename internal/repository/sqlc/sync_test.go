package sqlc

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queryName = regexp.MustCompile(`-- name: (\w+) :(\w+)`)

func queryNames(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var names []string
	for _, m := range queryName.FindAllStringSubmatch(string(raw), -1) {
		names = append(names, m[1]+" :"+m[2])
	}
	slices.Sort(names)
	return names
}

// The Go query files are kept by hand in the shape sqlc emits, so each one
// must carry exactly the queries of its queries/*.sql source.
func TestQueriesMatchSQLSources(t *testing.T) {
	sources, err := filepath.Glob(filepath.Join("queries", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, sources)

	for _, src := range sources {
		base := filepath.Base(src)
		t.Run(strings.TrimSuffix(base, ".sql"), func(t *testing.T) {
			want := queryNames(t, src)
			require.NotEmpty(t, want)
			assert.Equal(t, want, queryNames(t, base+".go"))
		})
	}
}
