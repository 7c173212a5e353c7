package uploader

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/helpcove/kbsync/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// artifactAPI is the slice of the OpenAI client surface the uploader consumes.
// Kept narrow so tests can stand in for it.
type artifactAPI interface {
	CreateFile(ctx context.Context, request openai.FileRequest) (openai.File, error)
	DeleteFile(ctx context.Context, fileID string) error

	CreateVectorStore(ctx context.Context, request openai.VectorStoreRequest) (openai.VectorStore, error)
	ListVectorStores(ctx context.Context, pagination openai.Pagination) (openai.VectorStoresList, error)
	CreateVectorStoreFile(ctx context.Context, vectorStoreID string, request openai.VectorStoreFileRequest) (openai.VectorStoreFile, error)
	DeleteVectorStoreFile(ctx context.Context, vectorStoreID string, fileID string) error
	ListVectorStoreFiles(ctx context.Context, vectorStoreID string, pagination openai.Pagination) (openai.VectorStoreFilesList, error)

	CreateAssistant(ctx context.Context, request openai.AssistantRequest) (openai.Assistant, error)
	ModifyAssistant(ctx context.Context, assistantID string, request openai.AssistantRequest) (openai.Assistant, error)
	ListAssistants(ctx context.Context, limit *int, order *string, after *string, before *string) (openai.AssistantsList, error)
}

// newAPIClient builds the OpenAI client. The BaseURL override serves gateways
// and test stubs; the HTTP timeout bounds every remote call.
func newAPIClient(cfg config.OpenAI) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	return openai.NewClientWithConfig(c)
}

// isNotFound matches the API's 404 answer. Deleting an artifact that is
// already gone is treated as success.
func isNotFound(err error) bool {
	var apiErr *openai.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound
}
