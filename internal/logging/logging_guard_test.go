package logging

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// runtimeRoots are the packages that run inside the service process, where a
// stray fmt print would interleave with the JSON log stream.
var runtimeRoots = []string{
	"cmd/terminald",
	"internal/httpapi",
	"internal/bridge",
	"internal/session",
}

var bannedPrint = regexp.MustCompile(`\bfmt\.(Print|Printf|Println|Fprint|Fprintf|Fprintln)\b|\blog\.(Print|Printf|Println)\b`)

// The startup banner in cmd/terminald is the one sanctioned print: it goes to
// the out writer handed down from main, not to the log stream.
func bannerException(path, line string) bool {
	return strings.HasSuffix(path, "/cmd/terminald/main.go") &&
		strings.Contains(strings.TrimSpace(line), "fmt.Fprintf(out,")
}

func TestRuntimePathsLogThroughSlog(t *testing.T) {
	for _, root := range runtimeRoots {
		err := filepath.WalkDir(filepath.Join("..", "..", root), func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			for i, line := range strings.Split(string(raw), "\n") {
				if !bannedPrint.MatchString(line) {
					continue
				}
				slash := filepath.ToSlash(path)
				if bannerException(slash, line) {
					continue
				}
				t.Errorf("%s:%d: banned print call: %s", slash, i+1, strings.TrimSpace(line))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("walk %s: %v", root, err)
		}
	}
}
