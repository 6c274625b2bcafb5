package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// ReadDocument reads a markdown file, decodes its YAML frontmatter into
// matter and returns the body. A file without frontmatter leaves matter
// untouched and returns the whole file as the body.
func ReadDocument(path string, matter any) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading document %s: %w", path, err)
	}

	body, err := frontmatter.Parse(bytes.NewReader(data), matter)
	if err != nil {
		return "", fmt.Errorf("parsing frontmatter in %s: %w", path, err)
	}
	return string(body), nil
}

// WriteDocument writes matter as YAML frontmatter followed by body.
// A nil matter writes the body alone.
func WriteDocument(path string, matter any, body string) error {
	var buf bytes.Buffer

	if matter != nil {
		fm, err := yaml.Marshal(matter)
		if err != nil {
			return fmt.Errorf("marshaling frontmatter: %w", err)
		}
		buf.WriteString("---\n")
		buf.Write(fm)
		buf.WriteString("---\n\n")
	}

	buf.WriteString(body)

	return WriteFile(path, buf.Bytes(), 0644)
}

// WriteFile writes data to a temp file in the destination directory then
// renames it into place, so readers never observe a partial file.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// Exists checks if a file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
