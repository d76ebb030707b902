package contacts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshogin/assistant/internal/domain/models"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedContacts(t *testing.T, store *SQLiteStore) {
	t.Helper()
	require.NoError(t, store.Replace(context.Background(), []models.ContactRef{
		{Name: "Dana Scully", Email: "dana@example.com", Phone: "+1 555 0101", Organization: "FBI"},
		{Name: "Fox Mulder", Email: "fox@example.com"},
		{Name: "Walter Skinner", Email: "walter@example.com"},
	}))
}

func TestFindByNameExactCaseInsensitive(t *testing.T) {
	store := openTestStore(t)
	seedContacts(t, store)

	contact, err := store.FindByName(context.Background(), "dana scully")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "Dana Scully", contact.Name)
	assert.Equal(t, "dana@example.com", contact.Email)
	assert.Equal(t, "FBI", contact.Organization)
}

func TestFindByNameSubstringFallback(t *testing.T) {
	store := openTestStore(t)
	seedContacts(t, store)

	contact, err := store.FindByName(context.Background(), "Mulder")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "Fox Mulder", contact.Name)
}

func TestFindByNameMiss(t *testing.T) {
	store := openTestStore(t)
	seedContacts(t, store)

	contact, err := store.FindByName(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

func TestSearch(t *testing.T) {
	store := openTestStore(t)
	seedContacts(t, store)

	results, err := store.Search(context.Background(), "er")
	require.NoError(t, err)
	require.Len(t, results, 2) // Mulder, Skinner
	assert.Equal(t, "Fox Mulder", results[0].Name)
	assert.Equal(t, "Walter Skinner", results[1].Name)

	results, err = store.Search(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReplaceSwapsContents(t *testing.T) {
	store := openTestStore(t)
	seedContacts(t, store)

	require.NoError(t, store.Replace(context.Background(), []models.ContactRef{
		{Name: "Only One", Email: "one@example.com"},
	}))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	contact, err := store.FindByName(context.Background(), "Dana Scully")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

func TestUpsertReplacesByName(t *testing.T) {
	store := openTestStore(t)
	seedContacts(t, store)

	require.NoError(t, store.Upsert(context.Background(), []models.ContactRef{
		{Name: "dana scully", Email: "new@example.com"},
		{Name: "New Person", Email: "np@example.com"},
	}))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	contact, err := store.FindByName(context.Background(), "Dana Scully")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "new@example.com", contact.Email)
}
