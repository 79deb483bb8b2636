package events_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"vibelink/events"
)

func startNATS(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "nats:2-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)
	return fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestNATSPublisher(t *testing.T) {
	url := startNATS(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe(events.SubjectPrefix+">", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub, err := events.NewNATSPublisher(url, logger)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(context.Background(), events.MatchCreated, map[string]string{"matchId": "m1"}))
	require.NoError(t, pub.Close())

	select {
	case msg := <-msgs:
		assert.Equal(t, "vibelink.match.created", msg.Subject)

		var ev struct {
			ID   string            `json:"id"`
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, events.MatchCreated, ev.Type)
		assert.Equal(t, "m1", ev.Data["matchId"])
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	url := startNATS(t)
	pub, err := events.NewNATSPublisher(url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.Publish(ctx, events.RoomJoined, nil), context.Canceled)
}

func TestNopPublisher(t *testing.T) {
	var p events.Publisher = events.NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), events.RoomLeft, nil))
	assert.NoError(t, p.Close())
}
