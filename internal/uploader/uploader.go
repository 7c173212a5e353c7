// Package uploader pushes staged article files into the vector store and
// keeps the assistant pointed at it.
package uploader

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/helpcove/kbsync/internal/config"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// FailedUpload records one staged file that could not be uploaded.
type FailedUpload struct {
	Path string
	Err  error
}

// BatchResult reports one batch dispatch. Uploaded maps staged paths to the
// artifact IDs now serving them; Failed lists what must be retried next tick.
type BatchResult struct {
	Uploaded map[string]string
	Failed   []FailedUpload
}

// Uploader owns one vector store and one assistant, both resolved by name at
// construction.
//
//   - CreateBatch uploads staged files and attaches them to the vector store.
//   - ReplaceBatch retires old artifacts first, then uploads fresh ones.
//   - DeleteBatch retires artifacts without replacement.
//
// Per-file failures are reported, never fatal; the assistant is refreshed once
// per batch when at least one file made it in.
type Uploader struct {
	api artifactAPI
	log *zap.Logger
	sem *semaphore.Weighted

	vectorStoreName string
	assistantName   string
	model           string
	instructions    string

	vectorStoreID string
	assistantID   string
}

// NewUploader connects to the artifact store and resolves (or creates) the
// configured vector store and assistant.
func NewUploader(ctx context.Context, cfg config.OpenAI, parallelism int, log *zap.Logger) (*Uploader, error) {
	return newUploader(ctx, newAPIClient(cfg), cfg, parallelism, log)
}

func newUploader(ctx context.Context, api artifactAPI, cfg config.OpenAI, parallelism int, log *zap.Logger) (*Uploader, error) {
	if parallelism < 1 {
		parallelism = 1
	}

	u := &Uploader{
		api:             api,
		log:             log.Named("uploader"),
		sem:             semaphore.NewWeighted(int64(parallelism)),
		vectorStoreName: cfg.VectorStoreName,
		assistantName:   cfg.AssistantName,
		model:           cfg.Model,
		instructions:    cfg.Instructions,
	}

	if err := u.ensureVectorStore(ctx); err != nil {
		return nil, fmt.Errorf("ensure vector store: %w", err)
	}
	if err := u.ensureAssistant(ctx); err != nil {
		return nil, fmt.Errorf("ensure assistant: %w", err)
	}
	return u, nil
}

// VectorStoreID returns the resolved vector store.
func (u *Uploader) VectorStoreID() string { return u.vectorStoreID }

// AssistantID returns the resolved assistant.
func (u *Uploader) AssistantID() string { return u.assistantID }

// CreateBatch uploads the staged files concurrently, bounded by the configured
// parallelism. A file failure lands in Failed; the error return only reports
// batch-level trouble such as context cancellation.
func (u *Uploader) CreateBatch(ctx context.Context, paths []string) (BatchResult, error) {
	result := BatchResult{Uploaded: make(map[string]string, len(paths))}
	if len(paths) == 0 {
		return result, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, path := range paths {
		if err := u.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return result, fmt.Errorf("acquire upload slot: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer u.sem.Release(1)

			id, err := u.uploadOne(ctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				u.log.Error("upload failed", zap.String("path", path), zap.Error(err))
				result.Failed = append(result.Failed, FailedUpload{Path: path, Err: err})
				return
			}
			result.Uploaded[path] = id
		}()
	}
	wg.Wait()

	if len(result.Uploaded) > 0 {
		u.refreshAssistant(ctx)
	}

	u.log.Info("batch upload finished",
		zap.Int("uploaded", len(result.Uploaded)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// ReplaceBatch retires the artifacts previously serving the articles, then
// uploads the staged files as fresh artifacts. The retire phase tolerates
// already-deleted artifacts and never fails the batch.
func (u *Uploader) ReplaceBatch(ctx context.Context, paths []string, oldIDs []string) (BatchResult, error) {
	if _, err := u.deleteArtifacts(ctx, oldIDs); err != nil {
		return BatchResult{Uploaded: map[string]string{}}, err
	}
	return u.CreateBatch(ctx, paths)
}

// DeleteBatch retires artifacts without replacement and reports how many were
// verifiably removed. Used by the purge flow and the reset utility.
func (u *Uploader) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	return u.deleteArtifacts(ctx, ids)
}

// ListArtifacts returns every file currently attached to the vector store,
// walking all pages.
func (u *Uploader) ListArtifacts(ctx context.Context) ([]openai.VectorStoreFile, error) {
	limit := 100
	var (
		all   []openai.VectorStoreFile
		after *string
	)
	for {
		page, err := u.api.ListVectorStoreFiles(ctx, u.vectorStoreID, openai.Pagination{Limit: &limit, After: after})
		if err != nil {
			return nil, fmt.Errorf("list vector store files: %w", err)
		}
		all = append(all, page.VectorStoreFiles...)

		if len(page.VectorStoreFiles) < limit {
			return all, nil
		}
		lastID := page.VectorStoreFiles[len(page.VectorStoreFiles)-1].ID
		after = &lastID
	}
}

// uploadOne pushes one staged file and attaches it to the vector store.
func (u *Uploader) uploadOne(ctx context.Context, path string) (string, error) {
	file, err := u.api.CreateFile(ctx, openai.FileRequest{
		FileName: filepath.Base(path),
		FilePath: path,
		Purpose:  "assistants",
	})
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := u.api.CreateVectorStoreFile(ctx, u.vectorStoreID, openai.VectorStoreFileRequest{FileID: file.ID}); err != nil {
		return "", fmt.Errorf("attach file %s: %w", file.ID, err)
	}

	u.log.Debug("file uploaded", zap.String("path", path), zap.String("artifact_id", file.ID))
	return file.ID, nil
}

// deleteArtifacts retires artifacts concurrently. Per-artifact failures are
// logged and skipped; the error return only reports context cancellation.
func (u *Uploader) deleteArtifacts(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		deleted int
	)
	for _, id := range ids {
		if err := u.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return deleted, fmt.Errorf("acquire delete slot: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer u.sem.Release(1)

			if err := u.deleteOne(ctx, id); err != nil {
				u.log.Error("artifact delete failed", zap.String("artifact_id", id), zap.Error(err))
				return
			}
			mu.Lock()
			deleted++
			mu.Unlock()
		}()
	}
	wg.Wait()
	return deleted, nil
}

// deleteOne detaches an artifact from the vector store and deletes the backing
// file. Not-found answers count as already deleted.
func (u *Uploader) deleteOne(ctx context.Context, id string) error {
	if err := u.api.DeleteVectorStoreFile(ctx, u.vectorStoreID, id); err != nil && !isNotFound(err) {
		return fmt.Errorf("detach: %w", err)
	}
	if err := u.api.DeleteFile(ctx, id); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete: %w", err)
	}
	u.log.Debug("artifact deleted", zap.String("artifact_id", id))
	return nil
}

// ensureVectorStore resolves the configured vector store by name, walking all
// pages, and creates it when absent.
func (u *Uploader) ensureVectorStore(ctx context.Context) error {
	limit := 100
	var after *string
	for {
		page, err := u.api.ListVectorStores(ctx, openai.Pagination{Limit: &limit, After: after})
		if err != nil {
			return fmt.Errorf("list vector stores: %w", err)
		}
		for _, vs := range page.VectorStores {
			if vs.Name == u.vectorStoreName {
				u.vectorStoreID = vs.ID
				u.log.Info("vector store found", zap.String("vector_store_id", vs.ID))
				return nil
			}
		}
		if !page.HasMore || page.LastID == nil {
			break
		}
		after = page.LastID
	}

	vs, err := u.api.CreateVectorStore(ctx, openai.VectorStoreRequest{Name: u.vectorStoreName})
	if err != nil {
		return fmt.Errorf("create vector store: %w", err)
	}
	u.vectorStoreID = vs.ID
	u.log.Info("vector store created", zap.String("vector_store_id", vs.ID))
	return nil
}

// ensureAssistant resolves the configured assistant by name, walking all
// pages. A found assistant is re-pointed at the current vector store; a
// missing one is created with file search enabled.
func (u *Uploader) ensureAssistant(ctx context.Context) error {
	limit := 100
	var after *string
	for {
		page, err := u.api.ListAssistants(ctx, &limit, nil, after, nil)
		if err != nil {
			return fmt.Errorf("list assistants: %w", err)
		}
		for _, a := range page.Assistants {
			if a.Name == nil || *a.Name != u.assistantName {
				continue
			}
			updated, err := u.api.ModifyAssistant(ctx, a.ID, openai.AssistantRequest{
				Model:         a.Model,
				ToolResources: u.toolResources(),
			})
			if err != nil {
				return fmt.Errorf("modify assistant %s: %w", a.ID, err)
			}
			u.assistantID = updated.ID
			u.model = updated.Model
			u.log.Info("assistant found", zap.String("assistant_id", updated.ID))
			return nil
		}
		if !page.HasMore || page.LastID == nil {
			break
		}
		after = page.LastID
	}

	created, err := u.api.CreateAssistant(ctx, openai.AssistantRequest{
		Model:         u.model,
		Name:          &u.assistantName,
		Instructions:  &u.instructions,
		Tools:         []openai.AssistantTool{{Type: openai.AssistantToolTypeFileSearch}},
		ToolResources: u.toolResources(),
	})
	if err != nil {
		return fmt.Errorf("create assistant: %w", err)
	}
	u.assistantID = created.ID
	u.log.Info("assistant created", zap.String("assistant_id", created.ID))
	return nil
}

// refreshAssistant re-points the assistant at the vector store so a finished
// batch becomes visible. Failures are logged, not returned; the next batch
// refreshes again.
func (u *Uploader) refreshAssistant(ctx context.Context) {
	_, err := u.api.ModifyAssistant(ctx, u.assistantID, openai.AssistantRequest{
		Model:         u.model,
		ToolResources: u.toolResources(),
	})
	if err != nil {
		u.log.Error("assistant refresh failed", zap.Error(err))
		return
	}
	u.log.Debug("assistant refreshed", zap.String("assistant_id", u.assistantID))
}

func (u *Uploader) toolResources() *openai.AssistantToolResource {
	return &openai.AssistantToolResource{
		FileSearch: &openai.AssistantToolFileSearch{
			VectorStoreIDs: []string{u.vectorStoreID},
		},
	}
}
