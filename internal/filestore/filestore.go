// Package filestore persists decrypted file contents to disk, one file
// per (client, filename) pair, laid out under a root directory keyed
// by owner.
package filestore

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/filevault/backupd/internal/protocol"
)

// Store writes plaintext for filesDir, creating the directory if needed.
type Store struct {
	filesDir string
}

// New returns a Store rooted at filesDir.
func New(filesDir string) *Store {
	return &Store{filesDir: filesDir}
}

// ErrInvalidFilename is returned when the client-supplied filename
// contains a path separator or parent-directory segment. The original
// reference implementation writes such filenames verbatim, which lets a
// malicious client escape the files directory; this server closes that
// hole rather than carrying it forward (see DESIGN.md).
var ErrInvalidFilename = fmt.Errorf("filestore: filename must not contain path separators")

// Save writes plaintext to disk under a name derived from clientID and
// filename, creating the backing directory on first use.
func (s *Store) Save(clientID [protocol.ClientIDSize]byte, filename string, plaintext []byte) (string, error) {
	if err := validateFilename(filename); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.filesDir, 0o755); err != nil {
		return "", fmt.Errorf("filestore: create files directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s", hex.EncodeToString(clientID[:]), filename)
	path := filepath.Join(s.filesDir, name)

	if err := os.WriteFile(path, plaintext, 0o644); err != nil {
		return "", fmt.Errorf("filestore: write file: %w", err)
	}
	return path, nil
}

// validateFilename rejects any filename that could escape filesDir once
// joined onto it: path separators (both flavors, for cross-platform
// clients) and ".." segments.
func validateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filestore: filename must not be empty")
	}
	if strings.ContainsAny(filename, "/\\") {
		return ErrInvalidFilename
	}
	if filename == "." || filename == ".." {
		return ErrInvalidFilename
	}
	return nil
}
