package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "armada-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishSendsJSON(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "wallpapers")
	require.NoError(t, err)

	pub, err := New(client, "wallpapers")
	require.NoError(t, err)
	defer pub.Stop()

	id, err := pub.Publish(ctx, "", armada.StoredEvent{Name: "0123456789.jpg", Width: 1920})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got armada.StoredEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "0123456789.jpg", got.Name)
	assert.Equal(t, 1920, got.Width)
}

func TestPublishErrors(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := New(nil, "x")
	assert.ErrorIs(t, err, armada.ErrConfiguration)

	pub, err := New(client, "")
	require.NoError(t, err)
	defer pub.Stop()

	_, err = pub.Publish(ctx, "", "payload")
	assert.Error(t, err, "no topic configured")

	_, err = pub.Publish(ctx, "wallpapers", func() {})
	assert.Error(t, err, "unmarshalable payload")

	_, err = pub.Publish(ctx, "missing-topic", "payload")
	assert.Error(t, err, "topic does not exist")
}

func TestCarrier(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	var _ propagation.TextMapCarrier = c
	c.Set("traceparent", "00-abc-def-01")
	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
