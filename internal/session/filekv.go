package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// fileRecord is the on-disk shape: the token and its expiry in epoch
// milliseconds, always written and removed as a pair.
type fileRecord struct {
	AccessToken string `json:"access_token"`
	TokenExpiry int64  `json:"token_expiry"`
}

// FileKV stores the credential in a single JSON file, created with
// owner-only permissions.
type FileKV struct {
	Path string
}

// NewFileKV creates a file-backed credential store at path.
func NewFileKV(path string) *FileKV {
	return &FileKV{Path: path}
}

// Put writes both entries in one file write.
func (f *FileKV) Put(ctx context.Context, cred Credential) error {
	data, err := json.Marshal(fileRecord{
		AccessToken: cred.Token,
		TokenExpiry: cred.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("session: encode credential: %w", err)
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("session: create dir: %w", err)
		}
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("session: write credential: %w", err)
	}
	return nil
}

// Get reads the credential. A missing file means no credential.
func (f *FileKV) Get(ctx context.Context) (Credential, bool, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, fmt.Errorf("session: read credential: %w", err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Credential{}, false, fmt.Errorf("session: decode credential: %w", err)
	}
	if rec.AccessToken == "" {
		return Credential{}, false, nil
	}
	cred := Credential{Token: rec.AccessToken}
	if rec.TokenExpiry > 0 {
		cred.ExpiresAt = time.UnixMilli(rec.TokenExpiry)
	}
	return cred, true, nil
}

// Clear removes the file. Removing an already-absent file is not an error.
func (f *FileKV) Clear(ctx context.Context) error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: clear credential: %w", err)
	}
	return nil
}
