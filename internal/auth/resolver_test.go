package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/pkg/model"
	"github.com/Checker-Finance/bondvault/pkg/secrets"
)

// --- Mock Provider ---

type mockProvider struct {
	secrets     map[string]map[string]string
	secretNames []string // for ListSecrets
	err         error
	calls       int
}

func (m *mockProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.secrets[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("secret not found: %s", key)
}

func (m *mockProvider) ListSecrets(_ context.Context, prefix string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.secretNames, nil
}

const prefix = "bondvault/accounts/"

func newResolver(mock *mockProvider, ttl time.Duration) *SecretsResolver {
	return NewSecretsResolver(zap.NewNop(), prefix, mock, secrets.NewCache[Identity](ttl))
}

// --- Tests ---

func TestSecretsResolver_Authenticate_FetchFromProvider(t *testing.T) {
	mock := &mockProvider{
		secrets: map[string]map[string]string{
			"bondvault/accounts/client-001": {
				"api_key": "key-123",
				"account": "acct-alice",
			},
		},
	}
	r := newResolver(mock, 5*time.Minute)

	id, err := r.Authenticate(context.Background(), "client-001", "key-123")

	require.NoError(t, err)
	assert.Equal(t, "client-001", id.ClientID)
	assert.Equal(t, model.Account("acct-alice"), id.Account)
	assert.Equal(t, 1, mock.calls)

	// Second call should hit the cache with no additional provider call
	id2, err := r.Authenticate(context.Background(), "client-001", "key-123")
	require.NoError(t, err)
	assert.Equal(t, id.Account, id2.Account)
	assert.Equal(t, 1, mock.calls, "should not call provider again on cache hit")
}

func TestSecretsResolver_Authenticate_WrongKey(t *testing.T) {
	mock := &mockProvider{
		secrets: map[string]map[string]string{
			"bondvault/accounts/client-001": {
				"api_key": "key-123",
				"account": "acct-alice",
			},
		},
	}
	r := newResolver(mock, 5*time.Minute)

	_, err := r.Authenticate(context.Background(), "client-001", "wrong-key")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Wrong key against a cached identity fails the same way.
	_, err = r.Authenticate(context.Background(), "client-001", "wrong-key")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, mock.calls)
}

func TestSecretsResolver_Authenticate_ProviderError(t *testing.T) {
	mock := &mockProvider{err: fmt.Errorf("aws: access denied")}
	r := newResolver(mock, 5*time.Minute)

	_, err := r.Authenticate(context.Background(), "client-001", "key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestSecretsResolver_Authenticate_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		secret  map[string]string
		errText string
	}{
		{
			name:    "missing api_key",
			secret:  map[string]string{"account": "acct-alice"},
			errText: "api_key",
		},
		{
			name:    "missing account",
			secret:  map[string]string{"api_key": "key-123"},
			errText: "account",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockProvider{
				secrets: map[string]map[string]string{
					"bondvault/accounts/client-001": tt.secret,
				},
			}
			r := newResolver(mock, 5*time.Minute)

			_, err := r.Authenticate(context.Background(), "client-001", "key-123")
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestSecretsResolver_Authenticate_CacheExpiration(t *testing.T) {
	mock := &mockProvider{
		secrets: map[string]map[string]string{
			"bondvault/accounts/client-001": {
				"api_key": "key-123",
				"account": "acct-alice",
			},
		},
	}
	r := newResolver(mock, 10*time.Millisecond)

	_, err := r.Authenticate(context.Background(), "client-001", "key-123")
	require.NoError(t, err)
	assert.Equal(t, 1, mock.calls)

	time.Sleep(20 * time.Millisecond)

	_, err = r.Authenticate(context.Background(), "client-001", "key-123")
	require.NoError(t, err)
	assert.Equal(t, 2, mock.calls, "should call provider again after cache expiry")
}

func TestSecretsResolver_DiscoverClients(t *testing.T) {
	mock := &mockProvider{
		secretNames: []string{
			"bondvault/accounts/client-001",
			"bondvault/accounts/client-002",
			"bondvault/accounts/client-003/extra", // nested, should be excluded
		},
	}
	r := newResolver(mock, 5*time.Minute)

	clients, err := r.DiscoverClients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"client-001", "client-002"}, clients)
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(Identity{
		ClientID: "Dev-Client",
		Account:  model.Account("acct-dev"),
		APIKey:   "dev-key",
	})

	id, err := r.Authenticate(context.Background(), "dev-client", "dev-key")
	require.NoError(t, err)
	assert.Equal(t, model.Account("acct-dev"), id.Account)

	_, err = r.Authenticate(context.Background(), "dev-client", "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = r.Authenticate(context.Background(), "unknown", "dev-key")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
