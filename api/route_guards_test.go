package api

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// Every route except login and the health probe must pass through
// withSession; state is only reachable behind a permission check.
func TestAPIRoutesHaveSessionGuards(t *testing.T) {
	path := filepath.Join(projectRoot(t), "api", "routes.go")
	lines := readLines(t, path)
	found := 0
	for i, line := range lines {
		if !(strings.Contains(line, "r.Get(") || strings.Contains(line, "r.Post(") ||
			strings.Contains(line, "r.Put(") || strings.Contains(line, "r.Delete(")) {
			continue
		}
		found++
		if strings.Contains(line, "\"/auth/login\"") || strings.Contains(line, "\"/health\"") {
			continue
		}
		if strings.Contains(line, "s.withSession(") {
			continue
		}
		t.Fatalf("route missing session guard in %s:%d -> %s", path, i+1, strings.TrimSpace(line))
	}
	if found == 0 {
		t.Fatalf("no routes found in %s", path)
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), ".."))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return lines
}
