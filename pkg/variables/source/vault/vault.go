// Package vault loads variables from a HashiCorp Vault KV v2 secrets engine.
//
// A reference such as vault://secret/deploy/api reads path "deploy/api" from
// the engine mounted at "secret".
package vault

import (
	"context"
	"fmt"
	"os"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/Nikolaikolya/deploy-commander/pkg/variables"
)

// Scheme is the reference scheme handled by this source.
const Scheme = "vault"

func init() {
	variables.RegisterSource(Scheme, func() (variables.Source, error) {
		return New(context.Background())
	})
}

// Source reads KV v2 secrets through a Vault client.
type Source struct {
	client *vaultapi.Client
}

// New creates a client from the standard VAULT_* environment. When
// VAULT_ROLE_ID and VAULT_SECRET_ID are both set the client logs in with
// AppRole, otherwise VAULT_TOKEN is used as-is.
func New(ctx context.Context) (*Source, error) {
	client, err := vaultapi.NewClient(vaultapi.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	roleID, secretID := os.Getenv("VAULT_ROLE_ID"), os.Getenv("VAULT_SECRET_ID")
	if roleID != "" && secretID != "" {
		login, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   roleID,
			"secret_id": secretID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to login to vault: %w", err)
		}
		if login == nil || login.Auth == nil {
			return nil, fmt.Errorf("vault approle login returned no token")
		}
		client.SetToken(login.Auth.ClientToken)
	}

	return NewWithClient(client), nil
}

// NewWithClient wraps an already configured client.
func NewWithClient(client *vaultapi.Client) *Source {
	return &Source{client: client}
}

// Load reads the latest version of the secret at ref ("<mount>/<path>").
func (s *Source) Load(ctx context.Context, ref string) (variables.Map, error) {
	mount, path, ok := strings.Cut(strings.Trim(ref, "/"), "/")
	if !ok || mount == "" || path == "" {
		return nil, fmt.Errorf("vault reference %q must be <mount>/<path>", ref)
	}

	secret, err := s.client.Logical().ReadWithContext(ctx, mount+"/data/"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found: %s", ref)
	}

	// KV v2 nests the payload under "data".
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret data format at %s", ref)
	}

	vars := make(variables.Map, len(data))
	for k, v := range data {
		if str, ok := v.(string); ok {
			vars[k] = str
			continue
		}
		vars[k] = fmt.Sprint(v)
	}
	return vars, nil
}
