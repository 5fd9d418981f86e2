package objectstore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/go-narrate/internal/objectstore"
)

// startTestServer starts an in-process NATS server with JetStream enabled.
func startTestServer(t *testing.T) *server.Server {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	s := test.RunServer(&opts)
	t.Cleanup(s.Shutdown)

	return s
}

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestPublisher_PublishAndDownload(t *testing.T) {
	s := startTestServer(t)

	p, err := objectstore.Connect(s.ClientURL(), "narrate-test", objectstore.WithMemoryStorage())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	ctx := context.Background()
	path := writeArtifact(t, "book-full.wav", "RIFF....WAVE")

	key, err := p.Publish(ctx, path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, p.Prefix()+"/"))
	assert.True(t, strings.HasSuffix(key, "/book-full.wav"))

	data, err := p.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....WAVE", string(data))
}

func TestPublisher_BindsExistingBucket(t *testing.T) {
	s := startTestServer(t)

	conn, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	js, err := conn.JetStream()
	require.NoError(t, err)

	first, err := objectstore.New(js, "shared")
	require.NoError(t, err)
	key, err := first.Publish(context.Background(), writeArtifact(t, "a-full.mp3", "ID3"))
	require.NoError(t, err)

	second, err := objectstore.New(js, "shared", objectstore.WithMemoryStorage())
	require.NoError(t, err)
	assert.NotEqual(t, first.Prefix(), second.Prefix(), "every publisher gets its own run prefix")

	data, err := second.Download(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "ID3", string(data))
}

func TestPublisher_MissingFile(t *testing.T) {
	s := startTestServer(t)

	p, err := objectstore.Connect(s.ClientURL(), "narrate-missing", objectstore.WithMemoryStorage())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	_, err = p.Publish(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := objectstore.Connect("nats://127.0.0.1:1", "x")
	assert.Error(t, err)
}
