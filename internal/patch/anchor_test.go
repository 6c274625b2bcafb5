package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnchorWhitespaceRewritesContextAndRemovals(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "w.txt", "alpha  \nbeta\t\ngamma\r\n")

	in := "diff --git a/w.txt b/w.txt\n" +
		"--- a/w.txt\n" +
		"+++ b/w.txt\n" +
		"@@ -1,3 +1,3 @@\n" +
		" alpha\n" +
		"-beta\n" +
		"+BETA  \n" +
		" gamma\n"

	assert.Equal(t, "diff --git a/w.txt b/w.txt\n"+
		"--- a/w.txt\n"+
		"+++ b/w.txt\n"+
		"@@ -1,3 +1,3 @@\n"+
		" alpha  \n"+
		"-beta\t\n"+
		"+BETA  \n"+
		" gamma\r\n", anchorWhitespace(dir, in))
}

func TestAnchorWhitespaceLeavesUnmatchedHunks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f.txt", numberedLines(5))

	in := "--- a/f.txt\n" +
		"+++ b/f.txt\n" +
		"@@ -2,2 +2,2 @@\n" +
		" stale\n" +
		"-line 3\n" +
		"+LINE 3\n"
	assert.Equal(t, in, anchorWhitespace(dir, in))
}

func TestAnchorWhitespacePrefersMatchNearHeader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "r.txt", "x \ny\nfiller\nfiller\nx\t\ny\n")

	in := "--- a/r.txt\n" +
		"+++ b/r.txt\n" +
		"@@ -5,2 +5,2 @@\n" +
		" x\n" +
		"-y\n" +
		"+Y\n"
	assert.Contains(t, anchorWhitespace(dir, in), "@@ -5,2 +5,2 @@\n x\t\n-y\n+Y\n")
}

func TestAnchorWhitespaceSkipsNewAndMissingFiles(t *testing.T) {
	dir := t.TempDir()

	created := newFileFragment("new.txt", "one\ntwo\n")
	assert.Equal(t, created, anchorWhitespace(dir, created))

	missing := "--- a/missing.txt\n+++ b/missing.txt\n@@ -1 +1 @@\n-a\n+b\n"
	assert.Equal(t, missing, anchorWhitespace(dir, missing))
}

func TestAnchorWhitespaceMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one \ntwo\n")
	writeFile(t, dir, "b.txt", "three\nfour \n")

	in := "diff --git a/a.txt b/a.txt\n" +
		"--- a/a.txt\n" +
		"+++ b/a.txt\n" +
		"@@ -1,2 +1,2 @@\n" +
		" one\n" +
		"-two\n" +
		"+TWO\n" +
		"\n" +
		"diff --git a/b.txt b/b.txt\n" +
		"--- a/b.txt\n" +
		"+++ b/b.txt\n" +
		"@@ -1,2 +1,2 @@\n" +
		"-three\n" +
		"+THREE\n" +
		" four\n"

	out := anchorWhitespace(dir, in)
	assert.Contains(t, out, "@@ -1,2 +1,2 @@\n one \n-two\n+TWO\n")
	assert.Contains(t, out, "@@ -1,2 +1,2 @@\n-three\n+THREE\n four \n")
}

func TestHunkEnd(t *testing.T) {
	lines := []string{"@@ -1,2 +1,2 @@", " a", "-b", "+c", `\ No newline at end of file`, "diff --git a/x b/x"}
	assert.Equal(t, 5, hunkEnd(lines, 1, 2, 2))

	malformed := []string{"@@ -1,3 +1,3 @@", " a", "garbage"}
	assert.Equal(t, 2, hunkEnd(malformed, 1, 3, 3))
}
