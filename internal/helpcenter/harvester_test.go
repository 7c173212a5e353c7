package helpcenter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHarvester(t *testing.T, f *fakeHelpCenter, pageSize int) (*Harvester, func()) {
	t.Helper()
	srv := f.server()
	c := newTestClient(t, srv, pageSize)
	return NewHarvester(c, 4, zap.NewNop()), srv.Close
}

func TestHarvestWalksWholeTree(t *testing.T) {
	f := newFakeHelpCenter(1) // one item per page, every listing paginates
	f.addCategory(1, "guides")
	f.addCategory(2, "faq")
	f.addSection(1, 11, "setup")
	f.addSection(1, 12, "billing")
	f.addSection(2, 21, "general")
	f.addArticle(11, 111, "install", "<p>install steps</p>")
	f.addArticle(11, 112, "upgrade", "<h1>Upgrade</h1>")
	f.addArticle(12, 121, "invoices", "<p>invoice help</p>")
	f.addArticle(21, 211, "contact", "<p>write to us</p>")

	h, done := newTestHarvester(t, f, 1)
	defer done()

	articles, err := h.Harvest(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 4)

	// Category order, then section order, then article order.
	ids := make([]int64, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	require.Equal(t, []int64{111, 112, 121, 211}, ids)

	// Bodies come back as Markdown, not HTML.
	require.Equal(t, "install steps", articles[0].Body)
	require.Equal(t, "# Upgrade", articles[1].Body)
	for _, a := range articles {
		require.NotContains(t, a.Body, "<p>")
	}
}

func TestHarvestEmptyTree(t *testing.T) {
	f := newFakeHelpCenter(10)
	h, done := newTestHarvester(t, f, 10)
	defer done()

	articles, err := h.Harvest(context.Background())
	require.NoError(t, err)
	require.Empty(t, articles)
}

func TestHarvestLeavesEmptyBodiesUntouched(t *testing.T) {
	f := newFakeHelpCenter(10)
	f.addCategory(1, "guides")
	f.addSection(1, 11, "setup")
	f.addArticle(11, 111, "placeholder", "")

	h, done := newTestHarvester(t, f, 10)
	defer done()

	articles, err := h.Harvest(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)
	require.Empty(t, articles[0].Body)
}

func TestHarvestRespectsParallelismBound(t *testing.T) {
	f := newFakeHelpCenter(10)
	f.listDelay = 10 * time.Millisecond
	for c := int64(1); c <= 4; c++ {
		f.addCategory(c, fmt.Sprintf("category-%d", c))
		for s := int64(0); s < 2; s++ {
			secID := c*10 + s
			f.addSection(c, secID, fmt.Sprintf("section-%d", secID))
			f.addArticle(secID, secID*10, "doc", "<p>doc</p>")
		}
	}

	srv := f.server()
	defer srv.Close()
	h := NewHarvester(newTestClient(t, srv, 10), 2, zap.NewNop())

	articles, err := h.Harvest(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 8)
	require.LessOrEqual(t, f.maxSeen.Load(), int32(2))
}

func TestHarvestAbortsOnSectionFailure(t *testing.T) {
	f := newFakeHelpCenter(10)
	f.addCategory(1, "guides")
	f.addSection(1, 11, "setup")
	f.fail = "sections"

	h, done := newTestHarvester(t, f, 10)
	defer done()

	articles, err := h.Harvest(context.Background())
	require.Error(t, err)
	require.Nil(t, articles)
	require.Contains(t, err.Error(), "sections")
}

func TestHarvestAbortsOnArticleFailure(t *testing.T) {
	f := newFakeHelpCenter(10)
	f.addCategory(1, "guides")
	f.addSection(1, 11, "setup")
	f.addArticle(11, 111, "install", "<p>install steps</p>")
	f.fail = "articles"

	h, done := newTestHarvester(t, f, 10)
	defer done()

	articles, err := h.Harvest(context.Background())
	require.Error(t, err)
	require.Nil(t, articles)
	require.Contains(t, err.Error(), "articles")
}
