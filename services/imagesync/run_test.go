package imagesync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arenasync-backend/lib/platforms/arenatrade"
	"arenasync-backend/lib/testutil"
	"arenasync-backend/lib/tokenstore/db"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestService(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/imagesync",
		DbSchema: db.Schema,
	})
	defer cleanup()

	_, err := setup.DB.Exec(`
		INSERT INTO token_deployments (token_address, token_name) VALUES
			('0xgood', 'Good'),
			('0xbad', 'Bad')
	`)
	require.NoError(t, err)

	imageBytes := []byte("\x89PNG fake image body")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/0xgood/opengraph-image":
			w.Header().Set("Content-Type", "image/png")
			w.Write(imageBytes)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	imagesDir := t.TempDir()
	client := arenatrade.NewClient(server.URL, time.Second*5)
	service := NewService(setup.DB, client, Config{
		ImagesDir:         imagesDir,
		MaxConcurrent:     2,
		BatchSize:         10,
		BatchDelaySeconds: 0.01,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	{
		stats, err := service.Run(ctx)
		require.NoError(t, err)

		require.Equal(t, 2, stats.Candidates)
		require.Equal(t, 1, stats.Batches)
		require.Equal(t, 1, stats.Succeeded)
		require.Equal(t, 1, stats.Failed)
		require.Equal(t, 0, stats.TimedOut)
		require.Equal(t, 0, stats.Errored)
	}
	{
		contents, err := os.ReadFile(filepath.Join(imagesDir, "0xgood.png"))
		require.NoError(t, err)
		require.Equal(t, imageBytes, contents)

		// the failed download must not leave any file behind
		entries, err := os.ReadDir(imagesDir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
	}
	{
		images, err := db.New(setup.DB).GetTokenImages(ctx, "0xgood")
		require.NoError(t, err)
		require.Equal(t, string(StatusSuccess), images.ArenaImageScrapeStatus.String)
		require.Equal(t, client.ImageURL("0xgood"), images.ArenaImageUrl.String)
		require.Equal(t, filepath.Join(imagesDir, "0xgood.png"), images.ArenaImageFilePath.String)

		images, err = db.New(setup.DB).GetTokenImages(ctx, "0xbad")
		require.NoError(t, err)
		require.Equal(t, string(StatusFailed), images.ArenaImageScrapeStatus.String)
		require.False(t, images.ArenaImageUrl.Valid)
		require.False(t, images.ArenaImageFilePath.Valid)
	}
	{
		// successful tokens are excluded on the next pass, failed ones retry
		stats, err := service.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, stats.Candidates)
		require.Equal(t, 1, stats.Failed)
	}
}

func TestCleanup(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/imagesync",
		DbSchema: db.Schema,
	})
	defer cleanup()

	imagesDir := t.TempDir()
	stale := filepath.Join(imagesDir, "0xstale.png")
	require.NoError(t, os.WriteFile(stale, []byte("leftover"), 0o644))

	_, err := setup.DB.Exec(`
		INSERT INTO token_deployments
			(token_address, arena_image_scrape_status, arena_image_scraped_at, arena_image_file_path)
		VALUES
			('0xstale', 'failed', 1, ?),
			('0xok', 'success', 1, 'unrelated.png')
	`, stale)
	require.NoError(t, err)

	service := NewService(setup.DB, nil, Config{ImagesDir: imagesDir})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	removed, err := service.Cleanup(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))

	images, err := db.New(setup.DB).GetTokenImages(ctx, "0xstale")
	require.NoError(t, err)
	require.False(t, images.ArenaImageFilePath.Valid)

	images, err = db.New(setup.DB).GetTokenImages(ctx, "0xok")
	require.NoError(t, err)
	require.Equal(t, "unrelated.png", images.ArenaImageFilePath.String)
}
