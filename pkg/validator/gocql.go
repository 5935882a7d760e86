package validator

import (
	"errors"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/nsgate/nsgate/pkg/gateway"
)

// GocqlConfig names the backing-store connection details spec.md §6
// enumerates for exactly this purpose: root_username, root_password,
// use_tls.
type GocqlConfig struct {
	Hostname string
	Port     int
	Username string
	Password string
	UseTLS   bool
	Keyspace string
}

// Gocql is a TokenValidator backed by a `tenant_tokens` table in the
// same database the gateway proxies, connected the way
// utils/utils.go's ConnectToCluster connects the legacy migration
// tooling: a single authenticated gocql.Session held for the adapter's
// lifetime.
type Gocql struct {
	session *gocql.Session
}

// ConnectGocql opens the backing-store session. The adapter is a
// capability passed into every session by the listener (spec.md §9,
// "the process-wide token-store connection is a capability passed into
// each session by the listener"), not a per-session connection.
func ConnectGocql(cfg GocqlConfig) (*Gocql, error) {
	cluster := gocql.NewCluster(cfg.Hostname)
	cluster.Port = cfg.Port
	cluster.Authenticator = gocql.PasswordAuthenticator{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	cluster.Keyspace = cfg.Keyspace
	if cfg.UseTLS {
		cluster.SslOpts = &gocql.SslOptions{EnableHostVerification: true}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("could not connect to token store at %s:%d: %w", cfg.Hostname, cfg.Port, err)
	}
	return &Gocql{session: session}, nil
}

// Validate implements gateway.TokenValidator by looking userToken up in
// the tenant_tokens table. A missing row is ErrTokenNotFound
// (bad-credentials, per spec.md §7); any other failure is returned
// as-is so the caller maps it to server-error instead.
func (g *Gocql) Validate(userToken []byte) (gateway.ValidationResult, error) {
	var internalToken []byte
	var expiryEpoch int64

	err := g.session.Query(
		`SELECT internal_token, expiry_epoch FROM tenant_tokens WHERE user_token = ?`,
		userToken,
	).Scan(&internalToken, &expiryEpoch)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return gateway.ValidationResult{}, gateway.ErrTokenNotFound
		}
		return gateway.ValidationResult{}, fmt.Errorf("tenant_tokens query failed: %w", err)
	}
	return gateway.ValidationResult{InternalToken: internalToken, ExpiryEpoch: expiryEpoch}, nil
}

// Close releases the backing-store session.
func (g *Gocql) Close() {
	g.session.Close()
}
