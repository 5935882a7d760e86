package gateway

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"
)

// Listener accepts client connections on one bind address and spawns a
// session per accepted pair, dialing a fresh upstream connection for
// each one (spec.md §6, "Downstream endpoint ... accepts any number of
// concurrent sessions").
type Listener struct {
	ListenAddr   string
	UpstreamAddr string

	Options SessionOptions

	listener net.Listener
	upSince  bool
}

// Listen binds the socket. Separated from Serve so a health checker can
// report ListenerUp as soon as the bind succeeds, before the first
// Accept.
func (l *Listener) Listen() error {
	ln, err := net.Listen("tcp", l.ListenAddr)
	if err != nil {
		return fmt.Errorf("could not bind %s: %w", l.ListenAddr, err)
	}
	l.listener = ln
	l.upSince = true
	return nil
}

// ListenerUp implements health.Checker.
func (l *Listener) ListenerUp() bool {
	return l.upSince
}

// UpstreamReachable implements health.Checker by attempting a short
// dial against the configured upstream, the same shape
// proxy/pkg/cloudgateproxy uses for its own readiness probe.
func (l *Listener) UpstreamReachable() bool {
	conn, err := net.DialTimeout("tcp", l.UpstreamAddr, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Serve runs the accept loop until ctx is cancelled or the listener is
// closed. A transient Accept error is retried with exponential backoff,
// the same jpillora/backoff policy proxy/pkg/runner.RunMain uses around
// RunWithRetries; a permanent error (the listener was closed) returns.
func (l *Listener) Serve(ctx context.Context) error {
	defer l.listener.Close()

	retry := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				wait := retry.Duration()
				log.Warnf("transient accept error, retrying in %s: %v", wait, err)
				time.Sleep(wait)
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		retry.Reset()

		go RunSession(conn, func() (net.Conn, error) {
			return net.Dial("tcp", l.UpstreamAddr)
		}, l.Options)
	}
}
