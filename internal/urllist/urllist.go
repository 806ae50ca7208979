// Package urllist loads and persists article URL lists.
package urllist

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Load reads article URLs from path, which may be a single text file or a
// directory of .txt files (one URL per line, # comments allowed). The result
// is deduplicated in first-seen order; files within a directory are read in
// name order.
func Load(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat url list: %w", err)
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read url list dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
		sort.Strings(files)
		if len(files) == 0 {
			return nil, fmt.Errorf("no .txt files in %s", path)
		}
	} else {
		files = []string{path}
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, file := range files {
		lines, err := readLines(file)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			if err := Validate(line); err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			urls = append(urls, line)
		}
	}
	return urls, nil
}

// Validate checks that raw is an absolute http(s) URL.
func Validate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}

// SaveFailed writes the failed URL set to path, one per line, replacing any
// previous file. An empty set removes the file so a clean rerun leaves no
// stale leftovers.
func SaveFailed(path string, urls []string) error {
	if len(urls) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove failed urls file: %w", err)
		}
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create failed urls file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, u := range urls {
		if _, err := fmt.Fprintln(w, u); err != nil {
			return fmt.Errorf("write failed urls file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush failed urls file: %w", err)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url list: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return lines, nil
}
