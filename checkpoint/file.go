package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/c360studio/taxorank/taxonomy"
)

// FileStore writes one JSON file per save under <dir>/<taxonomy id>/.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve checkpoint dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{dir: abs}, nil
}

// Dir returns the absolute root directory.
func (f *FileStore) Dir() string { return f.dir }

// Backend implements Store.
func (f *FileStore) Backend() string { return BackendFile }

// Close implements Store.
func (f *FileStore) Close() error { return nil }

// Save writes the snapshot atomically under the next free sequence number
// and returns a file:// location.
func (f *FileStore) Save(ctx context.Context, s *taxonomy.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encode(s)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(f.dir, s.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create taxonomy dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close snapshot: %w", err)
	}

	seq, err := f.highest(dir)
	if err != nil {
		return "", err
	}
	// Link fails when the name is taken, so a concurrent writer that claimed
	// the same number pushes this save to the next one.
	for {
		seq++
		path := filepath.Join(dir, fmt.Sprintf("%06d.json", seq))
		err := os.Link(tmp.Name(), path)
		if err == nil {
			return Location{Backend: BackendFile, Key: path}.String(), nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("link snapshot: %w", err)
		}
	}
}

// highest returns the largest sequence number saved in dir, or 0.
func (f *FileStore) highest(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}
	top := 0
	for _, m := range matches {
		n, err := strconv.Atoi(strings.TrimSuffix(filepath.Base(m), ".json"))
		if err == nil && n > top {
			top = n
		}
	}
	return top, nil
}

// Load reads the snapshot at a file:// location.
func (f *FileStore) Load(ctx context.Context, location string) (*taxonomy.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc, err := locate(location, BackendFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(loc.Key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return decode(data)
}

// Latest returns the location of the newest save of a taxonomy.
func (f *FileStore) Latest(ctx context.Context, taxonomyID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	matches, err := filepath.Glob(filepath.Join(f.dir, taxonomyID, "*.json"))
	if err != nil {
		return "", fmt.Errorf("list snapshots: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%s: %w", taxonomyID, ErrNotFound)
	}
	// Zero-padded sequence numbers sort lexically.
	sort.Strings(matches)
	return Location{Backend: BackendFile, Key: matches[len(matches)-1]}.String(), nil
}
