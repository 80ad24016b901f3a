package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/spookd/sling/internal/utils"
)

// readURLsFromFile reads URLs from a file, one per line. Blank lines
// and #-comments are skipped.
func readURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	scanner := bufio.NewScanner(file)

	// Long URLs can exceed the default 64KB line limit.
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return urls, nil
}

// ensureExtension sniffs the content of a completed download and
// renames it to carry the matching extension when the name has none.
// Returns the final path; sniffing failures leave the file untouched.
func ensureExtension(path string) string {
	if filepath.Ext(path) != "" {
		return path
	}

	file, err := os.Open(path)
	if err != nil {
		return path
	}
	head := make([]byte, 261) // filetype needs at most 261 bytes
	n, _ := file.Read(head)
	_ = file.Close()

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return path
	}

	renamed := path + "." + kind.Extension
	if _, err := os.Stat(renamed); err == nil {
		return path // don't clobber an existing file
	}
	if err := os.Rename(path, renamed); err != nil {
		utils.Debug("rename %s -> %s: %v", path, renamed, err)
		return path
	}
	utils.Debug("renamed %s -> %s (detected %s)", path, renamed, kind.MIME.Value)
	return renamed
}
