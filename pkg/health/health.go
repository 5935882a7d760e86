package health

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Status is the coarse state reported by the readiness handler, the
// same three-value enum as proxy/pkg/health.Status.
type Status string

const (
	UP      Status = "UP"
	DOWN    Status = "DOWN"
	STARTUP Status = "STARTUP"
)

// Checker reports whether the gateway is currently accepting sessions.
// The listener implements this once it has successfully bound its
// socket and can reach the upstream.
type Checker interface {
	ListenerUp() bool
	UpstreamReachable() bool
}

// StatusReport is the JSON body served by the readiness handler.
type StatusReport struct {
	Status     Status
	ListenerUp bool
	Upstream   bool
}

// DefaultReadinessHandler reports STARTUP until a real Checker is wired
// in, the way proxy/pkg/health.DefaultReadinessHandler does before the
// proxy has finished starting.
func DefaultReadinessHandler() http.Handler {
	return ReadinessHandler(nil)
}

// ReadinessHandler serves the current StatusReport as JSON, 200 while
// UP and 503 otherwise.
func ReadinessHandler(checker Checker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}

		report := PerformHealthCheck(checker)
		body, err := json.Marshal(report)
		if err != nil {
			id := uuid.New()
			log.Errorf("could not marshal health report (id %s): %v", id, err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if report.Status == UP {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Write(body)
	})
}

// LivenessHandler always reports OK once the process is running; it
// answers "is the process alive", not "is it accepting sessions".
func LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// PerformHealthCheck builds a StatusReport from checker, or reports
// STARTUP if the listener hasn't registered one yet.
func PerformHealthCheck(checker Checker) *StatusReport {
	if checker == nil {
		return &StatusReport{Status: STARTUP}
	}
	listenerUp := checker.ListenerUp()
	upstream := checker.UpstreamReachable()
	status := UP
	if !listenerUp || !upstream {
		status = DOWN
	}
	return &StatusReport{Status: status, ListenerUp: listenerUp, Upstream: upstream}
}
