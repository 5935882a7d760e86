package gateway

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRunSession_TornDownWhenClientDisconnects checks the full
// cancellation chain: a client disconnect closes the upstream
// connection too, so both pipeline goroutines exit and RunSession
// returns instead of leaking.
func TestRunSession_TornDownWhenClientDisconnects(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	upstreamClientSide, upstreamServerSide := net.Pipe()

	dial := func() (net.Conn, error) { return upstreamClientSide, nil }
	opts := SessionOptions{TokenLength: 20, MaxFrameLength: 1 << 20}

	runDone := make(chan struct{})
	go func() {
		RunSession(serverSide, dial, opts)
		close(runDone)
	}()

	clientSide.Close()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("RunSession did not return after client disconnect")
	}

	_, err := upstreamServerSide.Write([]byte("x"))
	require.Error(t, err)
}
