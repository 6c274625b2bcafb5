package patch

import (
	"fmt"

	"github.com/waigani/diffparser"
)

// FileSummary is the size of one file's change.
type FileSummary struct {
	Path    string
	Created bool
	Added   int
	Removed int
}

// Summarize parses a unified diff and counts added and removed lines per
// file.
func Summarize(text string) ([]FileSummary, error) {
	diff, err := diffparser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing patch: %w", err)
	}

	out := make([]FileSummary, 0, len(diff.Files))
	for _, f := range diff.Files {
		s := FileSummary{
			Path:    f.NewName,
			Created: f.Mode == diffparser.NEW,
		}
		if s.Path == "" {
			s.Path = f.OrigName
		}
		for _, h := range f.Hunks {
			for _, line := range h.NewRange.Lines {
				if line.Mode == diffparser.ADDED {
					s.Added++
				}
			}
			for _, line := range h.OrigRange.Lines {
				if line.Mode == diffparser.REMOVED {
					s.Removed++
				}
			}
		}
		out = append(out, s)
	}
	return out, nil
}
