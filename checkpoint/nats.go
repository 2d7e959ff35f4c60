package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/c360studio/taxorank/taxonomy"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore keeps snapshots in a JetStream key-value bucket.
type NATSStore struct {
	nc *nats.Conn     // nil when the caller owns the connection
	ns *server.Server // set when the store runs its own server
	kv jetstream.KeyValue
}

var (
	_ Store     = (*NATSStore)(nil)
	_ Historian = (*NATSStore)(nil)
)

// ConnectNATS dials url and opens (or creates) the bucket.
func ConnectNATS(ctx context.Context, url, bucket string) (*NATSStore, error) {
	nc, err := nats.Connect(url, nats.Name("taxorank"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	s, err := NewNATSStore(ctx, js, bucket)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.nc = nc
	return s, nil
}

// NewNATSStore opens (or creates) the bucket on an existing JetStream context.
func NewNATSStore(ctx context.Context, js jetstream.JetStream, bucket string) (*NATSStore, error) {
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("create checkpoint bucket: %w", err)
	}
	return &NATSStore{kv: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Taxorank %s snapshots", strings.ToLower(name)),
		History:     1,
	})
}

func counterKey(taxonomyID string) string {
	return taxonomyID + ".seq"
}

// natsKey maps "<id>/<seq>" onto a dot-separated KV key.
func natsKey(key string) string {
	return strings.ReplaceAll(key, "/", ".")
}

// Backend implements Store.
func (n *NATSStore) Backend() string { return BackendNATS }

// Close drains the connection when the store dialed it and stops the
// embedded server when it started one.
func (n *NATSStore) Close() error {
	if n.ns != nil {
		n.nc.Close()
		n.ns.Shutdown()
		n.ns.WaitForShutdown()
		return nil
	}
	if n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}

// Save puts the snapshot under "<id>.<seq>", taking seq from the taxonomy's
// counter key.
func (n *NATSStore) Save(ctx context.Context, s *taxonomy.Snapshot) (string, error) {
	data, err := encode(s)
	if err != nil {
		return "", err
	}
	seq, err := n.nextSeq(ctx, s.ID)
	if err != nil {
		return "", err
	}
	key := formatKey(s.ID, seq)
	if _, err := n.kv.Put(ctx, natsKey(key), data); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return Location{Backend: BackendNATS, Key: key}.String(), nil
}

// nextSeq increments "<id>.seq" with compare-and-set and returns the new
// value. A lost race re-reads the counter and tries again.
func (n *NATSStore) nextSeq(ctx context.Context, taxonomyID string) (int64, error) {
	key := counterKey(taxonomyID)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		entry, err := n.kv.Get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			_, err = n.kv.Create(ctx, key, []byte("1"))
			if err == nil {
				return 1, nil
			}
			if !errors.Is(err, jetstream.ErrKeyExists) {
				return 0, fmt.Errorf("create sequence counter: %w", err)
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read sequence counter: %w", err)
		}

		current, err := strconv.ParseInt(string(entry.Value()), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse sequence counter %s: %w", key, err)
		}
		next := current + 1
		_, err = n.kv.Update(ctx, key, []byte(strconv.FormatInt(next, 10)), entry.Revision())
		if err == nil {
			return next, nil
		}
		// Wrong last sequence shares its error code with ErrKeyExists.
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return 0, fmt.Errorf("update sequence counter: %w", err)
		}
	}
}

// Latest returns the location of the newest save of a taxonomy. It walks
// down from the counter past numbers whose put never landed.
func (n *NATSStore) Latest(ctx context.Context, taxonomyID string) (string, error) {
	entry, err := n.kv.Get(ctx, counterKey(taxonomyID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", fmt.Errorf("%s: %w", taxonomyID, ErrNotFound)
		}
		return "", fmt.Errorf("read sequence counter: %w", err)
	}
	top, err := strconv.ParseInt(string(entry.Value()), 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse sequence counter: %w", err)
	}

	for seq := top; seq > 0; seq-- {
		key := formatKey(taxonomyID, seq)
		_, err := n.kv.Get(ctx, natsKey(key))
		if err == nil {
			return Location{Backend: BackendNATS, Key: key}.String(), nil
		}
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", fmt.Errorf("get snapshot: %w", err)
		}
	}
	return "", fmt.Errorf("%s: %w", taxonomyID, ErrNotFound)
}

// Load gets the snapshot at a nats:// location.
func (n *NATSStore) Load(ctx context.Context, location string) (*taxonomy.Snapshot, error) {
	loc, err := locate(location, BackendNATS)
	if err != nil {
		return nil, err
	}
	if _, _, err := splitKey(loc.Key); err != nil {
		return nil, err
	}

	entry, err := n.kv.Get(ctx, natsKey(loc.Key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return decode(entry.Value())
}
