package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestClient(t *testing.T) *pubsub.Client {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublishDeliversJSON(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := newTestClient(t)

	topic, err := client.CreateTopic(ctx, "search-steps")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, "sub-id", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	pub := NewWithClient(client)
	id, err := pub.Publish(ctx, "search-steps", map[string]any{"query": "senior go", "source": "jsearch", "results": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	received := make(chan *pubsub.Message, 1)
	recvCtx, stop := context.WithCancel(ctx)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, msg *pubsub.Message) {
			msg.Ack()
			select {
			case received <- msg:
			default:
			}
			stop()
		})
	}()

	select {
	case msg := <-received:
		var payload map[string]any
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
		require.Equal(t, "jsearch", payload["source"])
		require.Equal(t, "application/json", msg.Attributes["content-type"])
	case <-ctx.Done():
		t.Fatal("message not received")
	}
	require.NoError(t, pub.Close())
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pub := NewWithClient(newTestClient(t))

	_, err := pub.Publish(ctx, "", "x")
	require.ErrorContains(t, err, "topic is required")

	_, err = pub.Publish(ctx, "missing-topic", "x")
	require.ErrorContains(t, err, "publish message")

	_, err = pub.Publish(ctx, "search-steps", func() {})
	require.ErrorContains(t, err, "marshal payload")

	require.NoError(t, pub.Close())
	_, err = pub.Publish(ctx, "search-steps", "x")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewRequiresProject(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "")
	require.ErrorContains(t, err, "project_id")
}
