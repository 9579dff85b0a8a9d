// Package azurerm implements an Azure Blob Storage history backend.
package azurerm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/Nikolaikolya/deploy-commander/pkg/history/backend"
)

func init() {
	backend.Register("azurerm", NewBackend)
}

// Backend stores objects as blobs in one container.
type Backend struct {
	client        *azblob.Client
	containerName string
	prefix        string
}

// NewBackend creates an Azure Blob Storage backend. Recognised keys:
// storage_account_name and container_name (required), key (blob prefix),
// endpoint, and one of access_key, sas_token or connection_string. Without
// explicit credentials DefaultAzureCredential is used.
func NewBackend(cfg map[string]string) (backend.Backend, error) {
	storageAccount := cfg["storage_account_name"]
	if storageAccount == "" {
		return nil, fmt.Errorf("azurerm backend requires 'storage_account_name' configuration")
	}
	containerName := cfg["container_name"]
	if containerName == "" {
		return nil, fmt.Errorf("azurerm backend requires 'container_name' configuration")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", storageAccount)
	if endpoint := cfg["endpoint"]; endpoint != "" {
		serviceURL = endpoint
	}

	client, err := newClient(cfg, storageAccount, serviceURL)
	if err != nil {
		return nil, err
	}

	return &Backend{
		client:        client,
		containerName: containerName,
		prefix:        cfg["key"],
	}, nil
}

func newClient(cfg map[string]string, storageAccount, serviceURL string) (*azblob.Client, error) {
	switch {
	case cfg["access_key"] != "":
		cred, err := azblob.NewSharedKeyCredential(storageAccount, cfg["access_key"])
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client with shared key: %w", err)
		}
		return client, nil

	case cfg["sas_token"] != "":
		sep := "?"
		if strings.Contains(serviceURL, "?") {
			sep = "&"
		}
		client, err := azblob.NewClientWithNoCredential(serviceURL+sep+strings.TrimPrefix(cfg["sas_token"], "?"), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client with SAS token: %w", err)
		}
		return client, nil

	case cfg["connection_string"] != "":
		client, err := azblob.NewClientFromConnectionString(cfg["connection_string"], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client from connection string: %w", err)
		}
		return client, nil

	default:
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create default Azure credential: %w", err)
		}
		client, err := azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client: %w", err)
		}
		return client, nil
	}
}

func (b *Backend) Type() string {
	return "azurerm"
}

func (b *Backend) Read(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	blobPath := b.fullPath(objectPath)

	resp, err := b.client.DownloadStream(ctx, b.containerName, blobPath, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read azure://%s/%s: %w", b.containerName, blobPath, err)
	}
	return resp.Body, nil
}

func (b *Backend) Write(ctx context.Context, objectPath string, data io.Reader) error {
	blobPath := b.fullPath(objectPath)

	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	contentType := "application/json"
	_, err = b.client.UploadBuffer(ctx, b.containerName, blobPath, content, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("failed to write azure://%s/%s: %w", b.containerName, blobPath, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, objectPath string) error {
	blobPath := b.fullPath(objectPath)

	_, err := b.client.DeleteBlob(ctx, b.containerName, blobPath, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to delete azure://%s/%s: %w", b.containerName, blobPath, err)
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, objectPath string) (bool, error) {
	blobPath := b.fullPath(objectPath)

	_, err := b.client.ServiceClient().NewContainerClient(b.containerName).NewBlobClient(blobPath).GetProperties(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check azure://%s/%s: %w", b.containerName, blobPath, err)
	}
	return true, nil
}

func (b *Backend) fullPath(objectPath string) string {
	if b.prefix == "" {
		return objectPath
	}
	return path.Join(b.prefix, objectPath)
}

var _ backend.Backend = (*Backend)(nil)
