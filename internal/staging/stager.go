// Package staging writes rendered article bodies to the local staging
// directory the uploader reads from.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gosimple/slug"
	"github.com/helpcove/kbsync/internal/helpcenter"
	"go.uber.org/zap"
)

// Stager persists article bodies as Markdown files named by the slug of the
// article name.
type Stager struct {
	dir string
	log *zap.Logger
}

func NewStager(dir string, log *zap.Logger) *Stager {
	return &Stager{dir: dir, log: log.Named("stager")}
}

// Stage writes one article body to {dir}/{slug}.md, overwriting any previous
// file, and records the path on the article.
func (s *Stager) Stage(article *helpcenter.Article) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, s.filename(article))
	if err := os.WriteFile(path, []byte(article.Body), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	article.StagedPath = path

	s.log.Debug("article staged", zap.Int64("article_id", article.ID), zap.String("path", path))
	return path, nil
}

// StageAll stages every article in order. Distinct article names collapsing to
// the same slug are warned about; the later write wins.
func (s *Stager) StageAll(articles []helpcenter.Article) error {
	bySlug := make(map[string]string, len(articles))

	for i := range articles {
		name := s.filename(&articles[i])
		if prev, ok := bySlug[name]; ok && prev != articles[i].Name {
			s.log.Warn("slug collision, later article wins",
				zap.String("file", name),
				zap.String("previous", prev),
				zap.String("current", articles[i].Name),
			)
		}
		bySlug[name] = articles[i].Name

		if _, err := s.Stage(&articles[i]); err != nil {
			return err
		}
	}

	s.log.Info("articles staged", zap.Int("count", len(articles)), zap.String("dir", s.dir))
	return nil
}

// filename slugs the article name; articles whose names slug to nothing fall
// back to the numeric ID.
func (s *Stager) filename(article *helpcenter.Article) string {
	name := slug.Make(article.Name)
	if name == "" {
		name = strconv.FormatInt(article.ID, 10)
	}
	return name + ".md"
}
