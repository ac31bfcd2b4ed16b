package tokensync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"arenasync-backend/lib/fetchfail"
	"arenasync-backend/lib/platforms/arenapro"
	"arenasync-backend/lib/testutil"
	"arenasync-backend/lib/tokenstore/db"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func pagesHandler(t *testing.T, pages map[int][]arenapro.Token) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
		if err != nil {
			t.Errorf("bad offset: %s", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(pages[offset])
		if err != nil {
			t.Error(err)
		}
	}
}

func TestService(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/tokensync",
		DbSchema: db.Schema,
	})
	defer cleanup()

	_, err := setup.DB.Exec(`
		INSERT INTO token_deployments (token_address, token_name, image_url) VALUES
			('0xaaa', 'Alpha', NULL),
			('0xbbb', 'Beta', 'https://cdn.example.com/existing.jpg'),
			('0xccc', 'Gamma', '')
	`)
	require.NoError(t, err)

	pages := map[int][]arenapro.Token{
		0: {
			{ContractAddress: "0xaaa", PhotoURL: "https://static.starsarena.com/a.jpg"},
			{ContractAddress: "0xbbb", PhotoURL: "https://static.starsarena.com/b.jpg"},
			{ContractAddress: "0xddd", PhotoURL: "https://cdn.example.com/d.jpg"},
		},
		2: {
			{ContractAddress: "0xccc", PhotoURL: "https://static.starsarena.com/c.jpg"},
		},
	}
	server := httptest.NewServer(pagesHandler(t, pages))
	defer server.Close()

	checkpointDir := t.TempDir()
	service := NewService(setup.DB, arenapro.NewClient(server.URL), Config{
		PageSize:         2,
		BaseDelaySeconds: 0.01,
		CheckpointDir:    checkpointDir,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	{
		stats, err := service.Run(ctx)
		require.NoError(t, err)

		// two data pages then three empty pages terminate the walk
		require.Equal(t, 5, stats.PagesFetched)
		require.Equal(t, 3, stats.EmptyPages)
		require.Equal(t, 4, stats.TokensFetched)
		require.Equal(t, 3, stats.MappingsFound)
		require.Equal(t, int64(2), stats.RowsUpdated)
	}
	{
		rows, err := setup.DB.Query(`SELECT token_address, image_url FROM token_deployments ORDER BY token_address`)
		require.NoError(t, err)
		defer rows.Close()

		got := map[string]string{}
		for rows.Next() {
			var addr string
			var url *string
			require.NoError(t, rows.Scan(&addr, &url))
			if url != nil {
				got[addr] = *url
			}
		}
		require.NoError(t, rows.Err())

		require.Equal(t, "https://static.starsarena.com/a.jpg", got["0xaaa"])
		require.Equal(t, "https://cdn.example.com/existing.jpg", got["0xbbb"])
		require.Equal(t, "https://static.starsarena.com/c.jpg", got["0xccc"])
	}
	{
		artifacts, err := filepath.Glob(filepath.Join(checkpointDir, "extraction_progress_*.json"))
		require.NoError(t, err)
		require.Len(t, artifacts, 1)

		progress, err := ReadProgress(artifacts[0])
		require.NoError(t, err)
		require.Equal(t, 3, progress.TotalMappings)
		require.Equal(t, "https://static.starsarena.com/a.jpg", progress.Mappings["0xaaa"])
	}
	{
		// a second run only touches rows whose url is still empty
		stats, err := service.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(0), stats.RowsUpdated)

		var url string
		err = setup.DB.QueryRow(`SELECT image_url FROM token_deployments WHERE token_address = '0xbbb'`).Scan(&url)
		require.NoError(t, err)
		require.Equal(t, "https://cdn.example.com/existing.jpg", url)
	}
}

func TestApplyRollsBackFailedBatch(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/tokensync",
		DbSchema: db.Schema,
	})
	defer cleanup()

	_, err := setup.DB.Exec(`
		INSERT INTO token_deployments (token_address) VALUES ('0xaaa'), ('0xboom');
		CREATE TRIGGER reject_boom BEFORE UPDATE ON token_deployments
		WHEN OLD.token_address = '0xboom'
		BEGIN SELECT RAISE(ABORT, 'simulated write failure'); END;
	`)
	require.NoError(t, err)

	service := NewService(setup.DB, nil, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	// map iteration order varies, repeat so both write orders get hit
	for i := 0; i < 5; i++ {
		updated, err := service.Apply(ctx, map[string]string{
			"0xaaa":  "https://static.starsarena.com/a.jpg",
			"0xboom": "https://static.starsarena.com/b.jpg",
		})
		require.Error(t, err)
		kind, ok := fetchfail.KindOf(err)
		require.True(t, ok)
		require.Equal(t, fetchfail.Persistence, kind)
		require.Equal(t, int64(0), updated)

		// the whole batch rolls back, even rows written before the failure
		var filled int
		err = setup.DB.QueryRow(`SELECT COUNT(*) FROM token_deployments WHERE image_url IS NOT NULL`).Scan(&filled)
		require.NoError(t, err)
		require.Equal(t, 0, filled)
	}
}

func TestApplyUnknownAddress(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/tokensync",
		DbSchema: db.Schema,
	})
	defer cleanup()

	service := NewService(setup.DB, nil, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	updated, err := service.Apply(ctx, map[string]string{
		"0xnotthere": "https://static.starsarena.com/x.jpg",
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), updated)
}
