// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads polite-pool contact details from a directory of
// plain-text files. Each file holds one value: the filename is the key and
// the trimmed file contents are the value.
//
// Supported key files: crossref-mailto, openalex-email.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultDir is the secrets directory used when none is configured.
const DefaultDir = ".secrets"

// Key files understood by bibsync.
const (
	CrossrefMailto = "crossref-mailto"
	OpenAlexEmail  = "openalex-email"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", "name", name, "err", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Contact returns the polite-pool contact address: crossref-mailto when set,
// otherwise openalex-email.
func Contact(secrets map[string]string) string {
	if v := secrets[CrossrefMailto]; v != "" {
		return v
	}
	return secrets[OpenAlexEmail]
}
