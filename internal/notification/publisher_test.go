package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher_Send(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	pub := NewRedisPublisher(client, "")
	assert.Equal(t, DefaultChannel, pub.Channel())

	sub := client.Subscribe(ctx, pub.Channel())
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Send(ctx, validParams()))

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)

	var n Notice
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
	assert.Equal(t, "npc-thief", n.RecipientID)
	assert.Equal(t, TypeCrimeFined, n.Type)
	assert.Equal(t, "crime-1", n.ResourceID)
	assert.False(t, n.SentAt.IsZero())
}

func TestRedisPublisher_RejectsInvalidParams(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	p := validParams()
	p.RecipientID = ""
	require.Error(t, NewRedisPublisher(client, "notices").Send(context.Background(), p))
}
