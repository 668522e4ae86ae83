package repository_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"listing-service/models"
	"listing-service/pkg/gitstore/gitstoretest"
	"listing-service/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dataPath = "data/products.json"

func newFileRepo(t *testing.T) (*repository.GitHubFileRepository, *gitstoretest.Server) {
	t.Helper()
	srv := gitstoretest.NewServer()
	t.Cleanup(srv.Close)
	return repository.NewGitHubFileRepository(srv.Client(), dataPath), srv
}

func TestFileRepo_EmptyStore(t *testing.T) {
	repo, _ := newFileRepo(t)
	got, err := repo.Find(context.Background(), models.ListingQuery{})
	require.NoError(t, err)
	assert.Empty(t, got)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.AveragePrice)
}

func TestFileRepo_CreateThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, srv := newFileRepo(t)

	added := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	in := newListing("Desk", 2000, "A", added)
	require.NoError(t, repo.Create(ctx, in))
	require.NotEmpty(t, in.ID)

	got, err := repo.FindByID(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.Price, got.Price)
	assert.Equal(t, in.Seller, got.Seller)
	assert.Equal(t, in.WhatsApp, got.WhatsApp)
	assert.Equal(t, in.Condition, got.Condition)
	assert.Equal(t, in.Description, got.Description)
	assert.Equal(t, in.ImagePath, got.ImagePath)
	assert.True(t, added.Equal(got.DateAdded))

	raw, ok := srv.Get(dataPath)
	require.True(t, ok)
	var stored []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Len(t, stored, 1)
}

func TestFileRepo_IDsAreUniqueAndIncreasing(t *testing.T) {
	ctx := context.Background()
	repo, _ := newFileRepo(t)
	now := time.Now().UTC()
	a := newListing("A", 100, "x", now)
	b := newListing("B", 200, "y", now)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))
	assert.NotEqual(t, a.ID, b.ID)
}

func TestFileRepo_LoadsLegacyEntriesWithoutIsActive(t *testing.T) {
	repo, srv := newFileRepo(t)
	srv.Put(dataPath, []byte(`[{"id":1700000000000,"name":"Kettle","price":600,"seller":"M","whatsapp":"919812345678","condition":"Good","description":"1.5L","imagePath":"https://x/k.jpg","dateAdded":"2023-11-14T22:13:20Z"}]`))

	got, err := repo.FindByID(context.Background(), "1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "Kettle", got.Name)
	assert.True(t, got.IsActive)
}

func TestFileRepo_Update(t *testing.T) {
	ctx := context.Background()
	repo, _ := newFileRepo(t)
	l := newListing("Desk", 2000, "A", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, l))

	desc := "Solid oak"
	got, err := repo.Update(ctx, l.ID, models.ListingUpdate{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Solid oak", got.Description)
	assert.Equal(t, "Desk", got.Name)

	reread, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Solid oak", reread.Description)

	_, err = repo.Update(ctx, "42", models.ListingUpdate{Description: &desc})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFileRepo_DeleteMissingLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	repo, srv := newFileRepo(t)
	require.NoError(t, repo.Create(ctx, newListing("Desk", 2000, "A", time.Now().UTC())))
	before, _ := srv.Get(dataPath)
	writes := srv.Writes()

	_, err := repo.Delete(ctx, "12345")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.Delete(ctx, "not-a-number")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	after, _ := srv.Get(dataPath)
	assert.Equal(t, before, after)
	assert.Equal(t, writes, srv.Writes())
}

func TestFileRepo_DeleteRemovesFromLaterLists(t *testing.T) {
	ctx := context.Background()
	repo, _ := newFileRepo(t)
	now := time.Now().UTC()
	keep := newListing("Keep", 100, "x", now)
	drop := newListing("Drop", 200, "y", now)
	require.NoError(t, repo.Create(ctx, keep))
	require.NoError(t, repo.Create(ctx, drop))

	deleted, err := repo.Delete(ctx, drop.ID)
	require.NoError(t, err)
	assert.Equal(t, drop.ImagePath, deleted.ImagePath)

	list, err := repo.Find(ctx, models.ListingQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)

	_, err = repo.FindByID(ctx, drop.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFileRepo_RetriesAfterConcurrentCommit(t *testing.T) {
	ctx := context.Background()
	repo, srv := newFileRepo(t)
	first := newListing("First", 100, "x", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, first))

	// Another writer commits between our read and our write, once.
	var raced bool
	srv.BeforeWrite(func(path string) {
		if raced {
			return
		}
		raced = true
		current, _ := srv.Get(path)
		var entries []map[string]interface{}
		_ = json.Unmarshal(current, &entries)
		entries = append(entries, map[string]interface{}{
			"id": 1, "name": "Other", "price": 50, "seller": "z", "whatsapp": "919000000000",
			"condition": "Fair", "description": "d", "imagePath": "https://x/o.jpg",
			"dateAdded": time.Now().UTC().Format(time.RFC3339),
		})
		body, _ := json.Marshal(entries)
		srv.Put(path, body)
	})

	second := newListing("Second", 200, "y", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, second))

	list, err := repo.Find(ctx, models.ListingQuery{Sort: models.SortName})
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, l := range list {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"First", "Other", "Second"}, names, "neither commit is lost")
}

func TestFileRepo_FailsClosedWhenRetriesRunOut(t *testing.T) {
	ctx := context.Background()
	repo, srv := newFileRepo(t)
	require.NoError(t, repo.Create(ctx, newListing("First", 100, "x", time.Now().UTC())))

	srv.BeforeWrite(func(path string) {
		current, _ := srv.Get(path)
		srv.Put(path, append(current, ' '))
	})

	err := repo.Create(ctx, newListing("Second", 200, "y", time.Now().UTC()))
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestFileRepo_KeepsWorkingPastInlineContentLimit(t *testing.T) {
	ctx := context.Background()
	repo, srv := newFileRepo(t)
	srv.SetInlineLimit(256)

	now := time.Now().UTC()
	var last *models.Listing
	for i := 0; i < 5; i++ {
		last = newListing("Lamp", 100+i, "x", now)
		require.NoError(t, repo.Create(ctx, last))
	}
	raw, _ := srv.Get(dataPath)
	require.Greater(t, len(raw), 256)

	list, err := repo.Find(ctx, models.ListingQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 5)

	_, err = repo.Delete(ctx, last.ID)
	require.NoError(t, err)
	list, err = repo.Find(ctx, models.ListingQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 4)
}
