//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Research builds the CLI and runs a research task for $QUERY, writing the
// report to output/reports/<slug>.md and the full result next to it.
func Research() error {
	mg.Deps(Build, Init)

	query := strings.TrimSpace(os.Getenv("QUERY"))
	if query == "" {
		return fmt.Errorf("set QUERY to the research question")
	}
	base := filepath.Join("output", "reports", slug(query))
	return sh.RunV(filepath.Join(binDir, binName), "research", query,
		"--report", base+".md",
		"--out", base+".yaml",
	)
}

// Tasks lists saved research tasks.
func Tasks() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "tasks")
}

// slug turns a query into a file name.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
