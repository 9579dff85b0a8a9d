package azurerm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known Azurite development account key.
const azuriteKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

func TestNewBackend_RequiredSettings(t *testing.T) {
	_, err := NewBackend(map[string]string{"container_name": "history"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage_account_name")

	_, err = NewBackend(map[string]string{"storage_account_name": "devstoreaccount1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container_name")
}

func TestNewBackend_SharedKey(t *testing.T) {
	b, err := NewBackend(map[string]string{
		"storage_account_name": "devstoreaccount1",
		"container_name":       "history",
		"access_key":           azuriteKey,
		"endpoint":             "http://127.0.0.1:10000/devstoreaccount1",
		"key":                  "prod",
	})
	require.NoError(t, err)

	ab := b.(*Backend)
	assert.Equal(t, "azurerm", ab.Type())
	assert.Equal(t, "history", ab.containerName)
	assert.Equal(t, "prod/deploy-history.json", ab.fullPath("deploy-history.json"))
}

func TestNewBackend_InvalidAccessKey(t *testing.T) {
	_, err := NewBackend(map[string]string{
		"storage_account_name": "devstoreaccount1",
		"container_name":       "history",
		"access_key":           "not base64!",
	})
	assert.ErrorContains(t, err, "shared key")
}

func TestNewBackend_SASToken(t *testing.T) {
	b, err := NewBackend(map[string]string{
		"storage_account_name": "acct",
		"container_name":       "history",
		"sas_token":            "?sv=2022-11-02&sig=abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "h.json", b.(*Backend).fullPath("h.json"))
}
