package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FilesystemNonceStore claims nonces by exclusively creating a marker file
// per (endpoint, nonce) pair. O_EXCL makes the claim atomic across processes
// sharing the directory, which covers multi-worker deployments without an
// external service.
type FilesystemNonceStore struct {
	dir string

	mu        sync.Mutex
	lastSweep time.Time
	now       func() time.Time
}

// NewFilesystemNonceStore creates the backing directory if needed.
func NewFilesystemNonceStore(dir string) (*FilesystemNonceStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create nonce directory: %w", err)
	}
	return &FilesystemNonceStore{dir: dir, now: time.Now}, nil
}

// Accept claims the nonce or fails. A pre-existing marker file means the
// nonce was already consumed.
func (s *FilesystemNonceStore) Accept(endpoint, nonce string) error {
	now := s.now()
	if err := checkNonceAge(nonce, now); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path(endpoint, nonce), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return ErrNonceUsed
		}
		return fmt.Errorf("claim nonce: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("claim nonce: %w", err)
	}

	s.maybeSweep(now)
	return nil
}

// path hashes the pair so arbitrary endpoint URLs cannot escape the
// directory or collide on filesystem-unfriendly characters.
func (s *FilesystemNonceStore) path(endpoint, nonce string) string {
	sum := sha256.Sum256([]byte(endpoint + "\x00" + nonce))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:]))
}

// maybeSweep removes markers older than the retention window, at most once
// per window. Their nonces are rejected by the age check regardless, so a
// marker removed by a racing sweep never re-opens a replay.
func (s *FilesystemNonceStore) maybeSweep(now time.Time) {
	s.mu.Lock()
	if now.Sub(s.lastSweep) < nonceRetention {
		s.mu.Unlock()
		return
	}
	s.lastSweep = now
	s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > nonceRetention {
			_ = os.Remove(filepath.Join(s.dir, entry.Name()))
		}
	}
}
