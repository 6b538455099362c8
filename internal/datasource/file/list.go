package file

import (
	"bufio"
	"os"
	"strings"

	"gcload/internal/records"
)

// ReadList reads a text file line by line and returns the non-empty,
// non-comment lines in order. Lines starting with '#' after trimming are
// skipped.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &records.FileError{Path: path, Format: "list", Op: "open", Err: err}
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &records.FileError{Path: path, Format: "list", Op: "read", Err: err}
	}
	return out, nil
}
