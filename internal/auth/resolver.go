package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/internal/metrics"
	"github.com/Checker-Finance/bondvault/pkg/model"
	"github.com/Checker-Finance/bondvault/pkg/secrets"
)

// ErrUnauthorized is returned when a client ID is unknown or the presented
// API key does not match the stored one.
var ErrUnauthorized = errors.New("auth: invalid client credentials")

// Identity is the resolved caller identity for an authenticated client.
type Identity struct {
	ClientID string
	Account  model.Account
	APIKey   string
}

// Resolver maps a client ID plus API key onto a ledger account.
type Resolver interface {
	Authenticate(ctx context.Context, clientID, apiKey string) (Identity, error)
}

// SecretsResolver resolves client identities from AWS Secrets Manager,
// caching results locally to reduce API calls.
//
// Secret naming convention: {prefix}{clientID}
// Secret JSON format:       {"api_key": "...", "account": "..."}
type SecretsResolver struct {
	logger   *zap.Logger
	prefix   string
	provider secrets.Provider
	cache    *secrets.Cache[Identity]
}

// NewSecretsResolver constructs a resolver over the given secrets provider and cache.
func NewSecretsResolver(
	logger *zap.Logger,
	prefix string,
	provider secrets.Provider,
	cache *secrets.Cache[Identity],
) *SecretsResolver {
	return &SecretsResolver{
		logger:   logger,
		prefix:   prefix,
		provider: provider,
		cache:    cache,
	}
}

func (r *SecretsResolver) secretName(clientID string) string {
	return strings.ToLower(r.prefix + clientID)
}

// Authenticate fetches or caches the Identity for clientID and verifies the
// presented API key against it.
func (r *SecretsResolver) Authenticate(ctx context.Context, clientID, apiKey string) (Identity, error) {
	key := strings.ToLower(clientID)

	id, ok := r.cache.Get(key)
	if ok {
		metrics.IncCacheHit("hit")
	} else {
		metrics.IncCacheHit("miss")

		secretName := r.secretName(clientID)
		secretMap, err := r.provider.GetSecret(ctx, secretName)
		if err != nil {
			r.logger.Warn("auth.secret_fetch_failed",
				zap.String("key", secretName),
				zap.Error(err))
			return Identity{}, fmt.Errorf("resolve identity for %q: %w", clientID, err)
		}

		id, err = parseIdentity(clientID, secretMap)
		if err != nil {
			return Identity{}, fmt.Errorf("parse secret %q: %w", secretName, err)
		}

		r.cache.Put(key, id)
		r.logger.Info("auth.identity_resolved", zap.String("client", clientID))
	}

	if subtle.ConstantTimeCompare([]byte(id.APIKey), []byte(apiKey)) != 1 {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}

// DiscoverClients lists all client IDs with identity secrets under the prefix.
func (r *SecretsResolver) DiscoverClients(ctx context.Context) ([]string, error) {
	names, err := r.provider.ListSecrets(ctx, strings.ToLower(r.prefix))
	if err != nil {
		return nil, fmt.Errorf("discover clients: %w", err)
	}

	var clients []string
	for _, name := range names {
		trimmed := strings.TrimPrefix(strings.ToLower(name), strings.ToLower(r.prefix))
		if trimmed != "" && !strings.Contains(trimmed, "/") {
			clients = append(clients, trimmed)
		}
	}

	r.logger.Info("auth.clients_discovered", zap.Int("count", len(clients)))
	return clients, nil
}

// parseIdentity extracts an Identity from the raw secret map.
func parseIdentity(clientID string, m map[string]string) (Identity, error) {
	id := Identity{
		ClientID: clientID,
		Account:  model.Account(m["account"]),
		APIKey:   m["api_key"],
	}
	if id.APIKey == "" {
		return Identity{}, fmt.Errorf("missing required field 'api_key'")
	}
	if id.Account == "" {
		return Identity{}, fmt.Errorf("missing required field 'account'")
	}
	return id, nil
}

// StaticResolver serves identities from a fixed in-memory table. Used in
// development mode and tests where no Secrets Manager is available.
type StaticResolver struct {
	identities map[string]Identity
}

// NewStaticResolver builds a resolver over the given identities, keyed by
// lowercase client ID.
func NewStaticResolver(ids ...Identity) *StaticResolver {
	m := make(map[string]Identity, len(ids))
	for _, id := range ids {
		m[strings.ToLower(id.ClientID)] = id
	}
	return &StaticResolver{identities: m}
}

func (r *StaticResolver) Authenticate(_ context.Context, clientID, apiKey string) (Identity, error) {
	id, ok := r.identities[strings.ToLower(clientID)]
	if !ok || subtle.ConstantTimeCompare([]byte(id.APIKey), []byte(apiKey)) != 1 {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}
