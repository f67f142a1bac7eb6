// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const fileSuffix = ".gob.gz"

var (
	// ErrNotFound is returned when no file exists for a name and version.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrChecksumMismatch is returned when a payload does not match its recorded digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Metadata describes a stored checkpoint.
type Metadata struct {
	// Name groups the versions of one model (e.g. "cclsrec").
	Name string `json:"name"`

	// Version increases with every saved checkpoint.
	Version int `json:"version"`

	// RunID identifies the training run that produced the checkpoint.
	RunID string `json:"run_id,omitempty"`

	// Epoch is the training epoch the parameters were taken from.
	Epoch int `json:"epoch"`

	// Metrics holds the validation metrics at Epoch.
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// NItems is the catalog size including the pad item.
	NItems int `json:"n_items"`

	// NParams is the number of scalar parameters.
	NParams int `json:"n_params"`

	TrainedAt          time.Time `json:"trained_at"`
	SavedAt            time.Time `json:"saved_at"`
	TrainingDurationMS int64     `json:"training_duration_ms"`

	// Checksum is the SHA-256 of the uncompressed payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`
}

// storedFile is the on-disk layout.
type storedFile struct {
	Metadata       Metadata
	CompressedData []byte
}

// Store manages versioned checkpoint files in one directory.
type Store struct {
	baseDir string
	mu      sync.RWMutex

	// latest version per name
	versions map[string]int
}

// NewStore opens the store at baseDir, creating the directory if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	s := &Store{baseDir: baseDir, versions: make(map[string]int)}
	if err := s.rescan(); err != nil {
		return nil, fmt.Errorf("scan existing checkpoints: %w", err)
	}
	return s, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string { return s.baseDir }

// rescan rebuilds the latest-version index from the directory.
// Must be called with mu held for writing (or before the store is shared).
func (s *Store) rescan() error {
	all, err := s.listVersions()
	if err != nil {
		return err
	}
	s.versions = make(map[string]int, len(all))
	for name, vs := range all {
		s.versions[name] = vs[len(vs)-1]
	}
	return nil
}

// listVersions returns every version on disk per name, ascending.
func (s *Store) listVersions() (map[string][]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, version, ok := parseFilename(entry.Name())
		if !ok {
			continue
		}
		out[name] = append(out[name], version)
	}
	for _, vs := range out {
		sort.Ints(vs)
	}
	return out, nil
}

// parseFilename splits "cclsrec_v12.gob.gz" into ("cclsrec", 12).
func parseFilename(file string) (name string, version int, ok bool) {
	base, found := strings.CutSuffix(file, fileSuffix)
	if !found {
		return "", 0, false
	}
	i := strings.LastIndex(base, "_v")
	if i < 1 {
		return "", 0, false
	}
	version, err := strconv.Atoi(base[i+2:])
	if err != nil || version < 1 {
		return "", 0, false
	}
	return base[:i], version, true
}

func (s *Store) path(name string, version int) string {
	return filepath.Join(s.baseDir, name+"_v"+strconv.Itoa(version)+fileSuffix)
}

// Save gob-encodes data and writes it as version of name. Version must be
// positive; an existing file for the same version is replaced.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, name string, version int, data any, meta Metadata) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid checkpoint name %q", name)
	}
	if version < 1 {
		return fmt.Errorf("checkpoint version must be positive, got %d", version)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(data); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("compress checkpoint: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	meta.Name = name
	meta.Version = version
	meta.Checksum = hex.EncodeToString(sum[:])
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.baseDir, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() //nolint:errcheck // the temp file is gone after a successful rename

	if err := gob.NewEncoder(tmp).Encode(storedFile{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("write checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(name, version)); err != nil {
		return fmt.Errorf("publish checkpoint file: %w", err)
	}

	if version > s.versions[name] {
		s.versions[name] = version
	}
	return nil
}

// Load decodes version of name into target. Version 0 loads the latest.
func (s *Store) Load(ctx context.Context, name string, version int, target any) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		latest, ok := s.versions[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		version = latest
	}

	sf, err := s.readFile(name, version)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress %s v%d: %w", name, version, err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed %s v%d: %w", name, version, err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != sf.Metadata.Checksum {
		return nil, fmt.Errorf("%s v%d: expected %s, got %s: %w", name, version, sf.Metadata.Checksum, got, ErrChecksumMismatch)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode %s v%d: %w", name, version, err)
	}
	return &sf.Metadata, nil
}

func (s *Store) readFile(name string, version int) (*storedFile, error) {
	f, err := os.Open(s.path(name, version))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s v%d: %w", name, version, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open checkpoint file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return &sf, nil
}

// Latest returns the newest version of name.
func (s *Store) Latest(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	version, ok := s.versions[name]
	return version, ok
}

// Refresh picks up versions written by another process.
func (s *Store) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rescan()
}

// ListModels returns the metadata of the latest version of every name,
// sorted by name. Unreadable files are skipped.
func (s *Store) ListModels(ctx context.Context) ([]Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.versions))
	for name := range s.versions {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Metadata, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sf, err := s.readFile(name, s.versions[name])
		if err != nil {
			continue
		}
		out = append(out, sf.Metadata)
	}
	return out, nil
}

// Delete removes one version.
func (s *Store) Delete(_ context.Context, name string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name, version)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s v%d: %w", name, version, ErrNotFound)
		}
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return s.rescan()
}

// Prune keeps the newest keep versions of name and removes the rest.
// It returns the number of files removed.
func (s *Store) Prune(_ context.Context, name string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.listVersions()
	if err != nil {
		return 0, fmt.Errorf("read directory: %w", err)
	}
	versions := all[name]
	removed := 0
	for i := 0; i < len(versions)-keep; i++ {
		if err := os.Remove(s.path(name, versions[i])); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s v%d: %w", name, versions[i], err)
		}
		removed++
	}
	return removed, s.rescan()
}

//nolint:gochecknoinits // gob.Register must be called in init for type registration
func init() {
	gob.Register(storedFile{})
	gob.Register(Checkpoint{})
}
