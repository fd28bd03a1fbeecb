package msgstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "bank", "messages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	data := map[string]any{
		"name": "Bo",
		"age":  int64(30),
		"tags": []any{"a", "b"},
	}
	require.NoError(t, store.Save(Message{
		Name:     "bo-v1",
		Protocol: "personnel",
		TypeName: "Person",
		Data:     data,
	}))

	m, err := store.Load("bo-v1")
	require.NoError(t, err)
	assert.Equal(t, "personnel", m.Protocol)
	assert.Equal(t, "Person", m.TypeName)
	assert.Equal(t, data, m.Data)
	assert.False(t, m.SavedAt.IsZero())
}

func TestSave_ReplacesSameName(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(Message{Name: "m", Protocol: "p", TypeName: "T", Data: int64(1)}))
	require.NoError(t, store.Save(Message{Name: "m", Protocol: "p", TypeName: "T", Data: int64(2)}))

	m, err := store.Load("m")
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.Data)

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSave_RequiresName(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Save(Message{Protocol: "p", TypeName: "T", Data: int64(1)}))
}

func TestList_OrderedByName(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, store.Save(Message{Name: name, Protocol: "p", TypeName: "T", Data: name, SavedAt: at}))
	}

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "bravo", list[1].Name)
	assert.Equal(t, "charlie", list[2].Name)
	assert.Nil(t, list[0].Data, "listings omit payloads")
	assert.Equal(t, at.Unix(), list[0].SavedAt.Unix())
}

func TestLoadDelete_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete("ghost"), ErrNotFound)

	require.NoError(t, store.Save(Message{Name: "m", Protocol: "p", TypeName: "T", Data: true}))
	require.NoError(t, store.Delete("m"))
	_, err = store.Load("m")
	assert.ErrorIs(t, err, ErrNotFound)
}
