// Package objectstore publishes finished audio artifacts to a NATS JetStream
// object store bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher uploads files under a per-run prefix.
type Publisher struct {
	conn   *nats.Conn
	bucket string
	store  nats.ObjectStore
	prefix string
}

// Option adjusts the bucket created by New.
type Option func(*nats.ObjectStoreConfig)

// WithMemoryStorage keeps the bucket in memory instead of on disk.
func WithMemoryStorage() Option {
	return func(c *nats.ObjectStoreConfig) { c.Storage = nats.MemoryStorage }
}

// Connect dials url and binds a Publisher to bucket. The connection is
// closed by Close.
func Connect(url, bucket string, opts ...Option) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("narrate"))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	p, err := New(js, bucket, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn

	return p, nil
}

// New creates bucket, or binds to it when it already exists.
func New(js nats.JetStreamContext, bucket string, opts ...Option) (*Publisher, error) {
	cfg := &nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("Narrated audio artifacts (%s).", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store, err := js.CreateObjectStore(cfg)
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("create object store bucket %q: %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("bind object store bucket %q: %w", bucket, err)
		}
	}

	return &Publisher{bucket: bucket, store: store, prefix: uuid.NewString()}, nil
}

// Prefix is the run identifier every published key starts with.
func (p *Publisher) Prefix() string { return p.prefix }

// Publish uploads the file at path and returns its object key.
func (p *Publisher) Publish(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	key := p.prefix + "/" + filepath.Base(path)
	meta := &nats.ObjectMeta{
		Name:     key,
		Metadata: map[string]string{"content-type": contentType(path)},
	}
	if _, err := p.store.Put(meta, f, nats.Context(ctx)); err != nil {
		return "", fmt.Errorf("put object %q to bucket %q: %w", key, p.bucket, err)
	}

	return key, nil
}

// Download returns the content stored under key.
func (p *Publisher) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := p.store.Get(key, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("get object %q from bucket %q: %w", key, p.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read object %q: %w", key, readErr)
	}
	if closeErr != nil {
		return data, fmt.Errorf("close object %q: %w", key, closeErr)
	}

	return data, nil
}

// Close drains the connection opened by Connect.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
