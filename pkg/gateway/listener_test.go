package gateway

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListener_ListenSetsListenerUp(t *testing.T) {
	l := &Listener{ListenAddr: "127.0.0.1:0", UpstreamAddr: "127.0.0.1:1"}
	require.False(t, l.ListenerUp())
	require.NoError(t, l.Listen())
	require.True(t, l.ListenerUp())
	require.False(t, l.UpstreamReachable())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Serve(ctx))
}

func TestListener_UpstreamReachableWhenDialable(t *testing.T) {
	upstream, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer upstream.Close()
	go func() {
		for {
			conn, err := upstream.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	l := &Listener{ListenAddr: "127.0.0.1:0", UpstreamAddr: upstream.Addr().String()}
	require.NoError(t, l.Listen())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_ = l.Serve(ctx)
	}()

	require.True(t, l.UpstreamReachable())
}
