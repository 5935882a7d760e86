package gateway

import (
	"net"
	"sync"
	"time"

	"github.com/nsgate/nsgate/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

// SessionOptions carries everything a session needs that does not
// belong on Session itself: the listener-wide capabilities (token
// validator, metrics) and the per-read limits from pkg/config.
type SessionOptions struct {
	Validator      TokenValidator
	TokenLength    int
	MaxFrameLength int32
	ReadTimeout    time.Duration

	requestsCounter      metrics.Counter
	requestErrorsCounter metrics.Counter
	sessionsActiveGauge  metrics.Gauge
	sessionsTotalCounter metrics.Counter
}

// NewSessionOptions resolves the session-scoped metrics once up front
// (GetOrCreate* is idempotent, but there is no reason to pay the lookup
// on every packet) and wraps validator so every call is timed into
// metrics.ValidatorLatencySeconds.
func NewSessionOptions(validator TokenValidator, tokenLength int, maxFrameLength int32, readTimeout time.Duration, factory metrics.Factory) SessionOptions {
	opts := SessionOptions{
		TokenLength:    tokenLength,
		MaxFrameLength: maxFrameLength,
		ReadTimeout:    readTimeout,
	}

	if factory == nil {
		opts.Validator = validator
		return opts
	}

	var err error
	if opts.requestsCounter, err = factory.GetOrCreateCounter(metrics.RequestsTotal); err != nil {
		log.Warnf("could not register requests_total: %v", err)
	}
	if opts.requestErrorsCounter, err = factory.GetOrCreateCounter(metrics.RequestErrorTotal); err != nil {
		log.Warnf("could not register request_errors_total: %v", err)
	}
	if opts.sessionsActiveGauge, err = factory.GetOrCreateGauge(metrics.SessionsActive); err != nil {
		log.Warnf("could not register sessions_active: %v", err)
	}
	if opts.sessionsTotalCounter, err = factory.GetOrCreateCounter(metrics.SessionsTotal); err != nil {
		log.Warnf("could not register sessions_total: %v", err)
	}

	histogram, err := factory.GetOrCreateHistogram(metrics.ValidatorLatencySeconds, metrics.DefaultLatencyBuckets)
	if err != nil {
		log.Warnf("could not register validator_latency_seconds: %v", err)
		opts.Validator = validator
	} else {
		opts.Validator = &timedValidator{delegate: validator, latency: histogram}
	}

	return opts
}

func countRequest(opts SessionOptions) {
	if opts.requestsCounter != nil {
		opts.requestsCounter.Inc()
	}
}

func countRequestError(opts SessionOptions) {
	if opts.requestErrorsCounter != nil {
		opts.requestErrorsCounter.Inc()
	}
}

// timedValidator wraps a TokenValidator so every Validate call is
// observed into a histogram, the same decorator shape
// proxy/pkg/zdmproxy uses to time calls to its cluster connections.
type timedValidator struct {
	delegate TokenValidator
	latency  metrics.Histogram
}

func (t *timedValidator) Validate(userToken []byte) (ValidationResult, error) {
	start := time.Now()
	result, err := t.delegate.Validate(userToken)
	t.latency.Observe(time.Since(start).Seconds())
	return result, err
}

// RunSession owns one accepted client connection and its matching
// upstream connection for their whole lifetime. It dials upstream,
// starts both pipeline workers, and tears the session down in the
// order spec.md §5's "Cancellation" rules require: close both sockets,
// signal the peer, wait for it to finish, then free the session.
func RunSession(client net.Conn, dialUpstream func() (net.Conn, error), opts SessionOptions) {
	if opts.sessionsActiveGauge != nil {
		opts.sessionsActiveGauge.Inc()
		defer opts.sessionsActiveGauge.Dec()
	}
	if opts.sessionsTotalCounter != nil {
		opts.sessionsTotalCounter.Inc()
	}

	defer client.Close()

	upstream, err := dialUpstream()
	if err != nil {
		log.Errorf("could not connect to upstream: %v", err)
		return
	}
	defer upstream.Close()

	session := NewSession()
	log.Debugf("session %s: accepted %s, upstream %s", session.ID, client.RemoteAddr(), upstream.RemoteAddr())

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := runClientPipeline(session, client, upstream, opts); err != nil {
			log.Debugf("session %s: client pipeline ended: %v", session.ID, err)
		}
		// Closing both sockets unblocks whichever pipeline is still
		// parked in a Read, satisfying step (i)-(ii) of the
		// cancellation rule in one call.
		client.Close()
		upstream.Close()
	}()

	go func() {
		defer wg.Done()
		if err := runUpstreamPipeline(session, client, upstream, opts); err != nil {
			log.Debugf("session %s: upstream pipeline ended: %v", session.ID, err)
		}
		client.Close()
		upstream.Close()
	}()

	wg.Wait()
	log.Debugf("session %s: torn down", session.ID)
}
