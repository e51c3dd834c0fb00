package credstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/clusterforge/nodeident/interfaces"
)

// CacheFile is the credential cache file name within the certificate directory.
const CacheFile = "credentials.json"

// cache is the local plaintext mirror of issued credentials, a single
// pretty-printed JSON document mapping node id to key/secret. An entry
// here is treated as authoritative: its presence suppresses any shared
// store write for that id.
type cache struct {
	path string
	log  *slog.Logger
}

// load reads the cache file. A missing or corrupt file is an empty
// mapping, never an error: the worst case is re-issuing a credential.
func (c *cache) load() map[interfaces.NodeID]interfaces.Credentials {
	entries := map[interfaces.NodeID]interfaces.Credentials{}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return entries
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		c.log.Warn("Credential cache file is corrupt, treating as empty",
			slog.String("path", c.path), "err", err)
		return map[interfaces.NodeID]interfaces.Credentials{}
	}
	return entries
}

// save rewrites the cache file in full. The write goes to a temp file in
// the same directory followed by a rename, so readers only ever observe a
// complete document.
func (c *cache) save(entries map[interfaces.NodeID]interfaces.Credentials) error {
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode credential cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), CacheFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create cache temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write credential cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close credential cache: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set cache permissions: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace credential cache: %w", err)
	}
	return nil
}
