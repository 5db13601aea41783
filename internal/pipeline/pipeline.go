// Package pipeline runs the fetch, clean, and isolate stages over a session.
// All directory enumeration and artifact I/O happens here; the core packages
// (clean, isolate) only ever see explicit record values.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Artifact name patterns shared by the stage runners.
const (
	rawFilePrefix   = "user_"
	rawFileInfix    = "_events_"
	cleanFilePrefix = "userClean_"
	isolatedPrefix  = "userIsolated_"
	notFoundPrefix  = "userNotFound_"
	artifactFileExt = ".json"
)

// writeJSON writes v as indented JSON to path.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// listArtifacts returns the sorted file names in dir matching prefix*.json.
// A missing directory yields an empty list.
func listArtifacts(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to enumerate %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, artifactFileExt) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// rawFileName builds the per-user raw artifact name.
func rawFileName(userID, start, end string) string {
	return rawFilePrefix + userID + rawFileInfix + start + "_to_" + end + artifactFileExt
}

// userIDFromRawFile extracts the user ID from a raw artifact name. The second
// return is false when the name does not match the raw pattern.
func userIDFromRawFile(name string) (string, bool) {
	if !strings.HasPrefix(name, rawFilePrefix) || !strings.HasSuffix(name, artifactFileExt) {
		return "", false
	}
	rest := strings.TrimPrefix(name, rawFilePrefix)
	idx := strings.LastIndex(rest, rawFileInfix)
	if idx <= 0 {
		return "", false
	}
	return rest[:idx], true
}

// userIDFromPrefixedFile extracts the user ID from prefix<id>.json names.
func userIDFromPrefixedFile(name, prefix string) (string, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, artifactFileExt) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, prefix), artifactFileExt)
	if id == "" {
		return "", false
	}
	return id, true
}
