package tokens

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Vault is the restricted key-value storage token material lives in, kept
// separate from the persisted session snapshot so tokens never ride along
// with state that gets shared or logged.
type Vault interface {
	Put(pair TokenPair) error
	Get() (TokenPair, bool, error)
	Delete() error
}

// MemoryVault keeps the pair in process memory only.
type MemoryVault struct {
	mu   sync.Mutex
	pair TokenPair
	set  bool
}

func NewMemoryVault() *MemoryVault { return &MemoryVault{} }

func (v *MemoryVault) Put(pair TokenPair) error {
	v.mu.Lock()
	v.pair, v.set = pair, true
	v.mu.Unlock()
	return nil
}

func (v *MemoryVault) Get() (TokenPair, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pair, v.set, nil
}

func (v *MemoryVault) Delete() error {
	v.mu.Lock()
	v.pair, v.set = TokenPair{}, false
	v.mu.Unlock()
	return nil
}

// FileVault persists the pair as a 0600 JSON file so a long-lived session
// survives process restarts without exposing tokens to other users.
type FileVault struct {
	mu   sync.Mutex
	path string
}

func NewFileVault(path string) *FileVault { return &FileVault{path: path} }

func (v *FileVault) Put(pair TokenPair) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(v.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	// write-then-rename so a crash never leaves a half-written vault
	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, v.path)
}

func (v *FileVault) Get() (TokenPair, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, err := os.ReadFile(v.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TokenPair{}, false, nil
		}
		return TokenPair{}, false, err
	}
	var pair TokenPair
	if err := json.Unmarshal(b, &pair); err != nil {
		return TokenPair{}, false, err
	}
	return pair, true, nil
}

func (v *FileVault) Delete() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := os.Remove(v.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
