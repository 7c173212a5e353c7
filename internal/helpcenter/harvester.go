package helpcenter

import (
	"context"
	"fmt"

	"github.com/helpcove/kbsync/internal/markdown"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Harvester walks the whole knowledge-base tree and returns every article with
// its body rewritten to Markdown. A single listing or render failure aborts the
// harvest; callers never see a partial tree.
type Harvester struct {
	client      *Client
	log         *zap.Logger
	parallelism int
}

// NewHarvester wires a Harvester over an API client. parallelism bounds the
// number of concurrent listing calls.
func NewHarvester(client *Client, parallelism int, log *zap.Logger) *Harvester {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Harvester{
		client:      client,
		log:         log.Named("harvester"),
		parallelism: parallelism,
	}
}

// Harvest lists categories, fans out over their sections and articles, and
// renders each body. Pages inside one listing stay sequential; distinct
// listings run concurrently up to the configured bound.
func (h *Harvester) Harvest(ctx context.Context) ([]Article, error) {
	categories, err := h.client.AllCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	h.log.Debug("categories listed", zap.Int("count", len(categories)))

	sections, err := h.sectionsOf(ctx, categories)
	if err != nil {
		return nil, err
	}
	h.log.Debug("sections listed", zap.Int("count", len(sections)))

	articles, err := h.articlesOf(ctx, sections)
	if err != nil {
		return nil, err
	}

	if err := h.renderBodies(articles); err != nil {
		return nil, err
	}

	h.log.Info("harvest complete",
		zap.Int("categories", len(categories)),
		zap.Int("sections", len(sections)),
		zap.Int("articles", len(articles)),
	)
	return articles, nil
}

func (h *Harvester) sectionsOf(ctx context.Context, categories []Category) ([]Section, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallelism)

	perCategory := make([][]Section, len(categories))
	for i, cat := range categories {
		g.Go(func() error {
			sections, err := h.client.AllSections(ctx, cat.ID)
			if err != nil {
				return err
			}
			perCategory[i] = sections
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sections: %w", err)
	}
	return flatten(perCategory), nil
}

func (h *Harvester) articlesOf(ctx context.Context, sections []Section) ([]Article, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallelism)

	perSection := make([][]Article, len(sections))
	for i, sec := range sections {
		g.Go(func() error {
			articles, err := h.client.AllArticles(ctx, sec.ID)
			if err != nil {
				return err
			}
			perSection[i] = articles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("articles: %w", err)
	}
	return flatten(perSection), nil
}

// renderBodies rewrites each article body from HTML to Markdown in place.
// Empty bodies pass through untouched; the hasher rejects them later.
func (h *Harvester) renderBodies(articles []Article) error {
	for i := range articles {
		if articles[i].Body == "" {
			continue
		}
		rendered, err := markdown.Render(articles[i].Body)
		if err != nil {
			return fmt.Errorf("render article %d: %w", articles[i].ID, err)
		}
		articles[i].Body = rendered
	}
	return nil
}

func flatten[T any](nested [][]T) []T {
	n := 0
	for _, group := range nested {
		n += len(group)
	}
	out := make([]T, 0, n)
	for _, group := range nested {
		out = append(out, group...)
	}
	return out
}
