package patch

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// anchorWhitespace rewrites the context and removed lines of every hunk to
// the exact bytes of the lines they match in the tree at dir, where the two
// differ only in trailing spaces, tabs or carriage returns. git apply treats
// such lines as different even with --ignore-whitespace. Hunks that cannot
// be located are left untouched for the later strategies.
func anchorWhitespace(dir, text string) string {
	lines := strings.Split(text, "\n")
	var source []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "diff --git "):
			source = nil
		case strings.HasPrefix(line, "--- "):
			source = readSource(dir, strings.TrimPrefix(line, "--- "))
		case strings.HasPrefix(line, "@@ "):
			m := hunkHeader.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			oldStart, _ := strconv.Atoi(m[1])
			end := hunkEnd(lines, i+1, count(m[2]), count(m[4]))
			if source != nil {
				anchorHunk(source, lines[i+1:end], oldStart)
			}
			i = end - 1
		}
	}
	return strings.Join(lines, "\n")
}

// readSource returns the lines of the file named by a "--- " header, or nil
// when there is no such file in dir.
func readSource(dir, name string) []string {
	if i := strings.IndexByte(name, '\t'); i >= 0 {
		name = name[:i]
	}
	if name == "/dev/null" || strings.HasPrefix(name, `"`) {
		return nil
	}
	rel, ok := cleanPath(strings.TrimPrefix(name, "a/"))
	if !ok {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func count(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// hunkEnd returns the index just past the hunk body starting at from, using
// the line counts from its header.
func hunkEnd(lines []string, from, oldN, newN int) int {
	j := from
	for j < len(lines) && (oldN > 0 || newN > 0) {
		l := lines[j]
		switch {
		case l == "" || l[0] == ' ':
			oldN--
			newN--
		case l[0] == '-':
			oldN--
		case l[0] == '+':
			newN--
		case l[0] == '\\':
		default:
			return j
		}
		j++
	}
	for j < len(lines) && strings.HasPrefix(lines[j], `\`) {
		j++
	}
	return j
}

// anchorHunk locates the old side of body in source, preferring the match
// closest to the line the header names, and copies the source bytes over the
// matched lines.
func anchorHunk(source, body []string, oldStart int) {
	var idx []int
	var old []string
	for i, l := range body {
		switch {
		case l == "":
			idx = append(idx, i)
			old = append(old, "")
		case l[0] == ' ' || l[0] == '-':
			idx = append(idx, i)
			old = append(old, l[1:])
		}
	}
	if len(old) == 0 || len(old) > len(source) {
		return
	}

	best := -1
	for p := 0; p+len(old) <= len(source); p++ {
		if !blockMatches(source[p:p+len(old)], old) {
			continue
		}
		if best < 0 || distance(p, oldStart-1) < distance(best, oldStart-1) {
			best = p
		}
	}
	if best < 0 {
		return
	}

	for k, i := range idx {
		prefix := " "
		if body[i] != "" {
			prefix = body[i][:1]
		}
		body[i] = prefix + source[best+k]
	}
}

func blockMatches(source, old []string) bool {
	for k := range old {
		if trimTrailing(source[k]) != trimTrailing(old[k]) {
			return false
		}
	}
	return true
}

func trimTrailing(s string) string {
	return strings.TrimRight(s, " \t\r")
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
