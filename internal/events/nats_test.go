package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:           "127.0.0.1",
		Port:           -1, // Random port
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 2048,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func subscribe(t *testing.T, url, subject string) *nats.Subscription {
	t.Helper()
	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	sub, err := nc.SubscribeSync(subject)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())
	return sub
}

func TestNATSPublisher_Publish(t *testing.T) {
	server := startTestNATSServer(t)
	sub := subscribe(t, server.ClientURL(), "verticald.>")

	pub, err := NewNATSPublisher(NATSConfig{URL: server.ClientURL()}, nil)
	require.NoError(t, err)
	defer pub.Close()

	e := New(TypeIngestCompleted)
	e.DocumentID = "annual-2024"
	e.Results = map[string]VerticalResult{
		"jio":    {Stored: true, ChunkCount: 3},
		"retail": {Error: "index backend unavailable"},
	}
	require.NoError(t, pub.Publish(context.Background(), e))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "verticald.ingest.completed", msg.Subject)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, TypeIngestCompleted, got.Type)
	assert.Equal(t, "annual-2024", got.DocumentID)
	assert.Equal(t, 3, got.Results["jio"].ChunkCount)
	assert.True(t, got.Results["jio"].Stored)
	assert.Equal(t, "index backend unavailable", got.Results["retail"].Error)
}

func TestNATSPublisher_SubjectPrefix(t *testing.T) {
	server := startTestNATSServer(t)
	sub := subscribe(t, server.ClientURL(), "reports.vertical.reset")

	pub, err := NewNATSPublisher(NATSConfig{URL: server.ClientURL(), SubjectPrefix: "reports"}, nil)
	require.NoError(t, err)
	defer pub.Close()

	assert.Equal(t, "reports.reset.all", pub.Subject(TypeResetAll))

	e := New(TypeVerticalReset)
	e.Verticals = []string{"jio"}
	require.NoError(t, pub.Publish(context.Background(), e))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var got Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, []string{"jio"}, got.Verticals)
}

func TestNATSConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     NATSConfig
		wantErr bool
	}{
		{"valid", NATSConfig{URL: "nats://localhost:4222", SubjectPrefix: "verticald"}, false},
		{"missing url", NATSConfig{SubjectPrefix: "verticald"}, true},
		{"wildcard prefix", NATSConfig{URL: "nats://localhost:4222", SubjectPrefix: "verticald.*"}, true},
		{"trailing dot", NATSConfig{URL: "nats://localhost:4222", SubjectPrefix: "verticald."}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNew(t *testing.T) {
	a := New(TypeResetAll)
	b := New(TypeResetAll)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, TypeResetAll, a.Type)
	assert.False(t, a.Time.IsZero())
	assert.NoError(t, Nop{}.Publish(context.Background(), a))
}
