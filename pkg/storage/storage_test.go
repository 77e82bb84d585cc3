package storage

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igreels/pkg/models"
)

func TestNewManager(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("creates directory if not exists", func(t *testing.T) {
		dir := filepath.Join(tempDir, "shots")
		m, err := NewManager(dir)
		require.NoError(t, err)
		assert.DirExists(t, dir)
		assert.Equal(t, dir, m.Dir())
		assert.Equal(t, 0, m.Count())
	})

	t.Run("counts existing screenshots", func(t *testing.T) {
		dir := filepath.Join(tempDir, "existing")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "error_a_b_1.png"), []byte("x"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

		m, err := NewManager(dir)
		require.NoError(t, err)
		assert.Equal(t, 1, m.Count())
	})
}

func TestScreenshotName(t *testing.T) {
	at := time.Unix(1714557600, 0)
	assert.Equal(t, "error_nasa_C1xY_1714557600.png", ScreenshotName("nasa", "C1xY", at))
	assert.Equal(t, "error_a_b_unknown_1714557600.png", ScreenshotName("a/b", "", at))
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	return buf.Bytes()
}

func TestSaveScreenshot(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	shot := tinyPNG(t)
	path, err := m.SaveScreenshot("nasa", "C1", shot, time.Unix(100, 0))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Dir(), "error_nasa_C1_100.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, shot, data)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")))
	assert.Equal(t, 1, m.Count())

	entries, err := os.ReadDir(m.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not remain")
}

func TestSaveScreenshotRejectsJPEG(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	jpeg := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	_, err = m.SaveScreenshot("nasa", "C1", jpeg, time.Unix(100, 0))
	assert.ErrorIs(t, err, ErrNotPNG)
	assert.Zero(t, m.Count())

	entries, err := os.ReadDir(m.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.False(t, IsPNG(nil))
	assert.True(t, IsPNG(tinyPNG(t)))
}

func TestWriteAndReadResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "reels_results.json")

	result := models.NewScrapeResult()
	result.Append("nasa", models.PostDetail{Shortcode: "C1", URL: "u1", Caption: models.StringPtr("hello")})
	result.AddAccount("empty")

	require.NoError(t, WriteResults(path, result, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"nasa\": [")

	back, err := ReadResults(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"nasa", "empty"}, back.Accounts())
	posts, ok := back.Posts("nasa")
	require.True(t, ok)
	assert.Equal(t, "hello", posts[0].CaptionText())
}

func TestReadResultsErrors(t *testing.T) {
	_, err := ReadResults(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, os.IsNotExist(err))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("[1,2]"), 0644))
	_, err = ReadResults(path)
	assert.Error(t, err)
}

func openTestStore(t *testing.T, now time.Time) *PostStore {
	t.Helper()
	s, err := OpenPostStore(filepath.Join(t.TempDir(), "db", "igreels.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return now }
	return s
}

func TestPostStoreSaveAndProcessed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, time.Now())

	details := []models.PostDetail{
		{
			Shortcode: "C1", URL: "https://www.instagram.com/reel/C1/",
			IsVideo: models.BoolPtr(true), Type: models.StringPtr("Reel"),
			Date: models.StringPtr("2024-05-01T10:00:00Z"), Caption: models.StringPtr("launch #space @nasa"),
		},
		models.FailedPostDetail(models.PostRef{Shortcode: "C2", URL: "https://www.instagram.com/reel/C2/"}),
	}
	require.NoError(t, s.SaveDetails(ctx, "run-1", "nasa", details))

	done, err := s.IsProcessed(ctx, "C1")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = s.IsProcessed(ctx, "C2")
	require.NoError(t, err)
	assert.False(t, done, "failed posts are retried on later runs")

	refs := []models.PostRef{{Shortcode: "C3"}, {Shortcode: "C1"}, {Shortcode: "C2"}}
	left, err := s.FilterProcessed(ctx, refs)
	require.NoError(t, err)
	assert.Equal(t, []models.PostRef{{Shortcode: "C3"}, {Shortcode: "C2"}}, left)

	stored, err := s.Details(ctx, "nasa")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "C1", stored[0].Shortcode)
	assert.Equal(t, details[0], stored[0])
	assert.Equal(t, details[1], stored[1])
}

func TestPostStoreFailureDoesNotOverwriteSuccess(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, time.Now())

	ok := models.PostDetail{Shortcode: "C1", URL: "u", Caption: models.StringPtr("kept")}
	require.NoError(t, s.SaveDetails(ctx, "run-1", "nasa", []models.PostDetail{ok}))
	require.NoError(t, s.SaveDetails(ctx, "run-2", "nasa",
		[]models.PostDetail{models.FailedPostDetail(models.PostRef{Shortcode: "C1", URL: "u"})}))

	stored, err := s.Details(ctx, "nasa")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "kept", stored[0].CaptionText())
	assert.False(t, stored[0].ExtractionError)
}

func TestPostStoreStatsAndCleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	s := openTestStore(t, now.AddDate(0, 0, -40))

	require.NoError(t, s.StartRun(ctx, "old"))
	require.NoError(t, s.SaveDetails(ctx, "old", "esa", []models.PostDetail{
		{Shortcode: "OLD", URL: "u", Caption: models.StringPtr("x")},
	}))

	s.now = func() time.Time { return now.Add(-2 * time.Hour) }
	require.NoError(t, s.SaveDetails(ctx, "new", "nasa", []models.PostDetail{
		{Shortcode: "A", URL: "u", Caption: models.StringPtr("x")},
	}))

	s.now = func() time.Time { return now }
	require.NoError(t, s.StartRun(ctx, "new"))
	require.NoError(t, s.SaveDetails(ctx, "new", "nasa", []models.PostDetail{
		{Shortcode: "B", URL: "u", Date: models.StringPtr("2024-05-01T00:00:00Z")},
		models.FailedPostDetail(models.PostRef{Shortcode: "F", URL: "u"}),
	}))

	result := models.NewScrapeResult()
	result.Append("nasa", models.PostDetail{Shortcode: "B"})
	require.NoError(t, s.FinishRun(ctx, "new", result, ""))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.Last24h)
	assert.Equal(t, 2, stats.LastHour)
	assert.Equal(t, 2, stats.Runs)
	assert.Equal(t, map[string]int{"nasa": 3, "esa": 1}, stats.PerAccount)
	assert.Equal(t, []AccountCount{{"nasa", 3}, {"esa", 1}}, stats.Accounts())

	removed, err := s.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Runs)

	_, err = s.Cleanup(ctx, 0)
	assert.Error(t, err)
}

func TestPostStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "igreels.db")

	s, err := OpenPostStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveDetails(ctx, "r", "nasa", []models.PostDetail{{Shortcode: "C1", URL: "u", Caption: models.StringPtr("x")}}))
	require.NoError(t, s.Close())

	s, err = OpenPostStore(path)
	require.NoError(t, err)
	defer s.Close()
	done, err := s.IsProcessed(ctx, "C1")
	require.NoError(t, err)
	assert.True(t, done)
}
