package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikolaikolya/deploy-commander/pkg/variables"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := vaultapi.DefaultConfig()
	cfg.Address = server.URL
	client, err := vaultapi.NewClient(cfg)
	require.NoError(t, err)
	client.SetToken("test-token")
	return NewWithClient(client)
}

func TestSource_Load(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		if r.URL.Path != "/v1/secret/data/deploy/api" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data": map[string]interface{}{
					"API_KEY": "abc123",
					"WORKERS": 4,
				},
			},
		})
	})

	vars, err := src.Load(context.Background(), "secret/deploy/api")
	require.NoError(t, err)
	assert.Equal(t, variables.Map{"API_KEY": "abc123", "WORKERS": "4"}, vars)

	_, err = src.Load(context.Background(), "secret/deploy/missing")
	assert.ErrorContains(t, err, "secret not found")
}

func TestSource_Load_InvalidReference(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})

	for _, ref := range []string{"", "secret", "/secret/"} {
		_, err := src.Load(context.Background(), ref)
		assert.ErrorContains(t, err, "must be <mount>/<path>", ref)
	}
}
