package helpcenter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/helpcove/kbsync/internal/config"
	"go.uber.org/zap"
)

// Client talks to the help-center REST API of one locale. Listings are always
// requested sorted by position ascending so harvest order is deterministic.
type Client struct {
	base     *url.URL // base URL with locale segment appended
	pageSize int
	http     *http.Client
	log      *zap.Logger
}

// NewClient builds a Client from config. The HTTP client carries the configured
// request timeout and is shared across all calls.
func NewClient(cfg config.HelpCenter, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	return &Client{
		base:     base.JoinPath(cfg.Locale),
		pageSize: cfg.PageSize,
		http:     &http.Client{Timeout: cfg.Timeout.Std()},
		log:      log.Named("helpcenter"),
	}, nil
}

// Categories fetches one page of categories. The bool reports whether more
// pages follow.
func (c *Client) Categories(ctx context.Context, page int) ([]Category, bool, error) {
	var out categoriesPage
	if err := c.getPage(ctx, "categories.json", page, &out); err != nil {
		return nil, false, fmt.Errorf("list categories page %d: %w", page, err)
	}
	return out.Categories, out.NextPage != nil, nil
}

// Sections fetches one page of sections under a category.
func (c *Client) Sections(ctx context.Context, categoryID int64, page int) ([]Section, bool, error) {
	path := fmt.Sprintf("categories/%d/sections.json", categoryID)
	var out sectionsPage
	if err := c.getPage(ctx, path, page, &out); err != nil {
		return nil, false, fmt.Errorf("list sections of category %d page %d: %w", categoryID, page, err)
	}
	return out.Sections, out.NextPage != nil, nil
}

// Articles fetches one page of articles under a section.
func (c *Client) Articles(ctx context.Context, sectionID int64, page int) ([]Article, bool, error) {
	path := fmt.Sprintf("sections/%d/articles.json", sectionID)
	var out articlesPage
	if err := c.getPage(ctx, path, page, &out); err != nil {
		return nil, false, fmt.Errorf("list articles of section %d page %d: %w", sectionID, page, err)
	}
	return out.Articles, out.NextPage != nil, nil
}

// AllCategories walks every category page.
func (c *Client) AllCategories(ctx context.Context) ([]Category, error) {
	var all []Category
	for page := 1; ; page++ {
		items, more, err := c.Categories(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !more {
			return all, nil
		}
	}
}

// AllSections walks every section page of a category.
func (c *Client) AllSections(ctx context.Context, categoryID int64) ([]Section, error) {
	var all []Section
	for page := 1; ; page++ {
		items, more, err := c.Sections(ctx, categoryID, page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !more {
			return all, nil
		}
	}
}

// AllArticles walks every article page of a section.
func (c *Client) AllArticles(ctx context.Context, sectionID int64) ([]Article, error) {
	var all []Article
	for page := 1; ; page++ {
		items, more, err := c.Articles(ctx, sectionID, page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !more {
			return all, nil
		}
	}
}

// Article fetches a single article by ID.
func (c *Client) Article(ctx context.Context, id int64) (*Article, error) {
	var out articleEnvelope
	if err := c.get(ctx, fmt.Sprintf("articles/%d.json", id), nil, &out); err != nil {
		return nil, fmt.Errorf("get article %d: %w", id, err)
	}
	return &out.Article, nil
}

// getPage issues a listing request with the standard sort/pagination params.
func (c *Client) getPage(ctx context.Context, path string, page int, out any) error {
	q := url.Values{}
	q.Set("sort_by", "position")
	q.Set("sort_order", "asc")
	q.Set("per_page", strconv.Itoa(c.pageSize))
	q.Set("page", strconv.Itoa(page))
	return c.get(ctx, path, q, out)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("GET", zap.String("url", u.String()))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
