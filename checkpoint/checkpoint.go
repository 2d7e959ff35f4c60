// Package checkpoint persists taxonomy snapshots and loads them back.
//
// Every Save appends a new entry and returns its location, a URI of the form
// "<backend>://<key>". The store allocates the sequence number of each save,
// so a taxonomy loaded from an older save never overwrites a newer one.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/c360studio/taxorank/taxonomy"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendNATS   = "nats"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Backends lists every supported backend name.
var Backends = []string{BackendFile, BackendNATS, BackendSQLite, BackendRedis}

// Store saves and loads taxonomy snapshots.
type Store interface {
	// Save persists the snapshot and returns its location.
	Save(ctx context.Context, s *taxonomy.Snapshot) (string, error)
	// Load returns the snapshot written at location.
	// It returns ErrNotFound when nothing was written there.
	Load(ctx context.Context, location string) (*taxonomy.Snapshot, error)
	// Backend names the storage backend.
	Backend() string
	// Close releases connections held by the store.
	Close() error
}

// Location identifies one saved snapshot.
type Location struct {
	Backend string
	Key     string
}

// String returns the URI form of the location.
func (l Location) String() string {
	return l.Backend + "://" + l.Key
}

// ParseLocation parses a "<backend>://<key>" URI.
func ParseLocation(s string) (Location, error) {
	backend, key, ok := strings.Cut(s, "://")
	if !ok || key == "" {
		return Location{}, fmt.Errorf("%w: %q", ErrBadLocation, s)
	}
	if !knownBackend(backend) {
		return Location{}, fmt.Errorf("%w: unknown backend %q", ErrBadLocation, backend)
	}
	return Location{Backend: backend, Key: key}, nil
}

func knownBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

// locate parses location and checks that it belongs to backend.
func locate(location, backend string) (Location, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return Location{}, err
	}
	if loc.Backend != backend {
		return Location{}, fmt.Errorf("%w: %s store cannot load %q", ErrBadLocation, backend, location)
	}
	return loc, nil
}

// formatKey is the backend-neutral key "<taxonomy id>/<sequence>".
func formatKey(id string, seq int64) string {
	return fmt.Sprintf("%s/%06d", id, seq)
}

// splitKey reverses formatKey.
func splitKey(key string) (string, int, error) {
	id, seq, ok := strings.Cut(key, "/")
	if !ok || id == "" {
		return "", 0, fmt.Errorf("%w: key %q", ErrBadLocation, key)
	}
	n, err := strconv.Atoi(seq)
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("%w: key %q", ErrBadLocation, key)
	}
	return id, n, nil
}

func encode(s *taxonomy.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	if s.ID == "" {
		return nil, fmt.Errorf("snapshot has no taxonomy id")
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*taxonomy.Snapshot, error) {
	var s taxonomy.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// LoadTaxonomy loads the snapshot at location and rebuilds the taxonomy,
// checking its invariants.
func LoadTaxonomy(ctx context.Context, store Store, location string) (*taxonomy.Taxonomy, error) {
	s, err := store.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	t, err := taxonomy.FromSnapshot(s)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", location, err)
	}
	return t, nil
}

// Save snapshots t, writes it to store and records the location on t.
func Save(ctx context.Context, store Store, t *taxonomy.Taxonomy) (string, error) {
	location, err := store.Save(ctx, t.Snapshot())
	if err != nil {
		return "", err
	}
	t.RecordSave(location)
	return location, nil
}

// Historian is implemented by stores that can find the newest save of a
// taxonomy.
type Historian interface {
	Latest(ctx context.Context, taxonomyID string) (string, error)
}
