// file: internal/credential/resolver_test.go
package credential

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"DataAgents/internal/core/domain"
	"DataAgents/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(vars map[string]string) Resolver {
	return Resolver{LookupEnv: func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}}
}

func TestResolve_Literal(t *testing.T) {
	r := fakeEnv(map[string]string{"API_TOKEN": "s3cret"})

	t.Run("plain token becomes bearer", func(t *testing.T) {
		c, err := r.Resolve(&domain.AuthSpec{Literal: "abc"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer abc", c.Headers["Authorization"])
	})

	t.Run("env substitution inside literal", func(t *testing.T) {
		c, err := r.Resolve(&domain.AuthSpec{Literal: "${API_TOKEN}"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer s3cret", c.Headers["Authorization"])
	})

	t.Run("missing env in literal", func(t *testing.T) {
		_, err := r.Resolve(&domain.AuthSpec{Literal: "${NOPE}"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, port.ErrConfiguration))
		assert.Contains(t, err.Error(), "NOPE")
	})

	t.Run("literal pair is basic auth", func(t *testing.T) {
		c, err := r.Resolve(&domain.AuthSpec{Pair: []string{"alice", "${API_TOKEN}"}})
		require.NoError(t, err)
		assert.True(t, c.HasBasic)
		assert.Equal(t, "alice", c.Username)
		assert.Equal(t, "s3cret", c.Password)
	})

	t.Run("literal wins over structured fields", func(t *testing.T) {
		c, err := r.Resolve(&domain.AuthSpec{Literal: "lit", Type: "api_key", Token: "structured"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer lit", c.Headers["Authorization"])
		assert.NotContains(t, c.Headers, DefaultAPIKeyHeader)
	})
}

func TestResolve_Structured(t *testing.T) {
	r := fakeEnv(map[string]string{"KEY_VAR": "from-env"})

	testCases := []struct {
		name       string
		spec       domain.AuthSpec
		wantHeader string
		wantValue  string
	}{
		{"bearer token", domain.AuthSpec{Type: "bearer", Token: "t1"}, "Authorization", "Bearer t1"},
		{"bearer from env", domain.AuthSpec{Type: "bearer", EnvVar: "KEY_VAR"}, "Authorization", "Bearer from-env"},
		{"default type is bearer", domain.AuthSpec{Token: "t2"}, "Authorization", "Bearer t2"},
		{"api key default header", domain.AuthSpec{Type: "api_key", Token: "k"}, DefaultAPIKeyHeader, "k"},
		{"api key custom header", domain.AuthSpec{Type: "api_key", Header: "X-Custom", EnvVar: "KEY_VAR"}, "X-Custom", "from-env"},
		{"token wins over env", domain.AuthSpec{Type: "api_key", Token: "tok", EnvVar: "KEY_VAR"}, DefaultAPIKeyHeader, "tok"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := r.Resolve(&tc.spec)
			require.NoError(t, err)
			assert.Equal(t, tc.wantValue, c.Headers[tc.wantHeader])
		})
	}

	t.Run("basic", func(t *testing.T) {
		c, err := r.Resolve(&domain.AuthSpec{Type: "basic", Username: "u", Password: "p"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c.Apply(req)
		user, pass, ok := req.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "u", user)
		assert.Equal(t, "p", pass)
	})
}

func TestResolve_Failures(t *testing.T) {
	r := fakeEnv(nil)

	testCases := []struct {
		name    string
		spec    domain.AuthSpec
		wantMsg string
	}{
		{"unsupported type", domain.AuthSpec{Type: "oauth2", Token: "x"}, "oauth2"},
		{"api key env unset", domain.AuthSpec{Type: "api_key", EnvVar: "OPENAQ_API_KEY"}, "OPENAQ_API_KEY"},
		{"neither token nor env", domain.AuthSpec{Type: "bearer"}, "env_var"},
		{"basic without username", domain.AuthSpec{Type: "basic"}, "username"},
		{"malformed pair", domain.AuthSpec{Pair: []string{"only-one"}}, "凭据对"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := r.Resolve(&tc.spec)
			require.Error(t, err)
			assert.Nil(t, c)

			var ce *port.ConfigurationError
			require.True(t, errors.As(err, &ce), "期望 ConfigurationError，实际 %T", err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestResolve_NilSpec(t *testing.T) {
	c, err := Resolve(nil)
	require.NoError(t, err)
	assert.True(t, c.Empty())
}
