package staging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/helpcove/kbsync/internal/helpcenter"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStageAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "staged") // does not exist yet
	s := NewStager(dir, zap.NewNop())

	articles := []helpcenter.Article{
		{ID: 1, Name: "Getting Started", Body: "# Getting Started\n\nWelcome."},
		{ID: 2, Name: "Pairing a Display", Body: "Pair it."},
	}
	require.NoError(t, s.StageAll(articles))

	data, err := os.ReadFile(filepath.Join(dir, "getting-started.md"))
	require.NoError(t, err)
	require.Equal(t, "# Getting Started\n\nWelcome.", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "pairing-a-display.md"))
	require.NoError(t, err)
	require.Equal(t, "Pair it.", string(data))

	require.Equal(t, filepath.Join(dir, "getting-started.md"), articles[0].StagedPath)
	require.Equal(t, filepath.Join(dir, "pairing-a-display.md"), articles[1].StagedPath)
}

func TestStageOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewStager(dir, zap.NewNop())

	a := helpcenter.Article{ID: 7, Name: "Guide", Body: "old"}
	_, err := s.Stage(&a)
	require.NoError(t, err)

	a.Body = "new"
	path, err := s.Stage(&a)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

func TestStageAllSlugCollisionLaterWins(t *testing.T) {
	dir := t.TempDir()
	s := NewStager(dir, zap.NewNop())

	articles := []helpcenter.Article{
		{ID: 1, Name: "Hello World!", Body: "first"},
		{ID: 2, Name: "hello world", Body: "second"},
	}
	require.NoError(t, s.StageAll(articles))

	data, err := os.ReadFile(filepath.Join(dir, "hello-world.md"))
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	// Both articles point at the same file.
	require.Equal(t, articles[0].StagedPath, articles[1].StagedPath)
}

func TestStageUnsluggableNameFallsBackToID(t *testing.T) {
	dir := t.TempDir()
	s := NewStager(dir, zap.NewNop())

	a := helpcenter.Article{ID: 42, Name: "!!!", Body: "body"}
	path, err := s.Stage(&a)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "42.md"), path)
}
