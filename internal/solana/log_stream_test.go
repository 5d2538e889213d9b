package solana

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogStream_HandleMessage_Notification(t *testing.T) {
	stream := NewLogStream(DefaultLogStreamConfig())

	msg := []byte(`{
		"method": "logsNotification",
		"params": {
			"result": {
				"context": {"slot": 12345},
				"value": {
					"signature": "sig-abc",
					"logs": ["Program log: InitializeMint", "Program TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA success"]
				}
			},
			"subscription": 1
		}
	}`)

	stream.handleMessage(msg)

	select {
	case ev := <-stream.eventCh:
		assert.Equal(t, Signature("sig-abc"), ev.Signature)
		assert.Equal(t, uint64(12345), ev.Slot)
		require.Len(t, ev.Logs, 2)
		assert.False(t, ev.DetectedAt.IsZero())
	default:
		t.Fatal("expected an event on the channel")
	}

	assert.Equal(t, int64(1), stream.Stats().EventsOut)
}

func TestLogStream_HandleMessage_SubscriptionConfirmation(t *testing.T) {
	stream := NewLogStream(DefaultLogStreamConfig())

	stream.handleMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":42}`))

	select {
	case <-stream.eventCh:
		t.Fatal("confirmation must not produce an event")
	default:
	}
}

func TestLogStream_HandleMessage_Garbage(t *testing.T) {
	stream := NewLogStream(DefaultLogStreamConfig())

	// Must not panic or emit.
	stream.handleMessage([]byte(`not json at all`))
	stream.handleMessage([]byte(`{}`))

	select {
	case <-stream.eventCh:
		t.Fatal("garbage must not produce an event")
	default:
	}
}

func TestLogStream_SubscribeAfterDisconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cfg := DefaultLogStreamConfig()
	cfg.WSEndpoint = "ws" + strings.TrimPrefix(srv.URL, "http")
	stream := NewLogStream(cfg)
	require.NoError(t, stream.connect(context.Background()))

	require.NoError(t, stream.subscribe(string(TokenProgramID)))

	// A disconnect racing the subscribe must surface as an error, never as
	// a write through a cleared connection.
	stream.disconnect()
	assert.NotPanics(t, func() {
		assert.Error(t, stream.subscribe(string(TokenProgramID)))
	})
}

func TestLogStream_DropWhenChannelFull(t *testing.T) {
	stream := NewLogStream(DefaultLogStreamConfig())

	notification := []byte(`{
		"method": "logsNotification",
		"params": {"result": {"context": {"slot": 1}, "value": {"signature": "s", "logs": []}}}
	}`)

	// Fill the buffer past capacity; overflow is dropped, not blocked.
	for i := 0; i < cap(stream.eventCh)+10; i++ {
		stream.handleMessage(notification)
	}

	assert.Equal(t, int64(cap(stream.eventCh)), stream.Stats().EventsOut)
}
