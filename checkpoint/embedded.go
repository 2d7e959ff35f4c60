package checkpoint

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const embeddedReadyTimeout = 10 * time.Second

// StartEmbeddedNATS runs an in-process JetStream server on a random port
// that keeps its streams under storeDir.
func StartEmbeddedNATS(storeDir string) (*server.Server, error) {
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, fmt.Errorf("create JetStream store dir: %w", err)
	}
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1, // Random available port
		JetStream: true,
		StoreDir:  storeDir,
		NoLog:     true,
		NoSigs:    true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}
	go ns.Start()

	if !ns.ReadyForConnections(embeddedReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start")
	}
	return ns, nil
}

// OpenEmbeddedNATS starts an embedded server and opens the bucket on it.
// Closing the store shuts the server down.
func OpenEmbeddedNATS(ctx context.Context, storeDir, bucket string) (*NATSStore, error) {
	ns, err := StartEmbeddedNATS(storeDir)
	if err != nil {
		return nil, err
	}
	s, err := ConnectNATS(ctx, ns.ClientURL(), bucket)
	if err != nil {
		ns.Shutdown()
		ns.WaitForShutdown()
		return nil, err
	}
	s.ns = ns
	return s, nil
}
