package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
)

const entityID = "7d9a3c1e-5f2b-4c8d-9e0f-1a2b3c4d5e6f"

func newArchive(t *testing.T) *LocalArchive {
	t.Helper()
	a, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	// strictly increasing timestamps make List ordering deterministic
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return a
}

func TestLocalArchive_SaveOpen(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	info, err := a.Save(ctx, entityID, "../transactions.csv", ContentTypeCSV, strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), info.Size)
	assert.NotContains(t, info.Path, "/")

	r, got, err := a.Open(ctx, entityID, info.ID)
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(content))
	assert.Equal(t, ContentTypeCSV, got.ContentType)
	assert.Equal(t, entityID, got.EntityID)
}

func TestLocalArchive_ListNewestFirst(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, name := range []string{"first.xlsx", "second.xlsx", "third.xlsx"} {
		info, err := a.Save(ctx, entityID, name, ContentTypeXLSX, strings.NewReader(name))
		require.NoError(t, err)
		ids = append(ids, info.ID)
	}

	files, err := a.List(ctx, entityID)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, ids[2], files[0].ID)
	assert.Equal(t, ids[0], files[2].ID)

	other, err := a.List(ctx, "0b6e4a1c-2d3f-4a5b-8c6d-7e8f9a0b1c2d")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLocalArchive_Prune(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := a.Save(ctx, entityID, "export.xlsx", ContentTypeXLSX, strings.NewReader("x"))
		require.NoError(t, err)
	}

	removed, err := a.Prune(ctx, entityID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	files, err := a.List(ctx, entityID)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	removed, err = a.Prune(ctx, entityID, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestLocalArchive_Errors(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	_, err := a.Save(ctx, "../../etc", "x.csv", ContentTypeCSV, strings.NewReader(""))
	assert.True(t, errors.Is(err, apperror.ErrInvalidArgument))

	_, _, err = a.Open(ctx, entityID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	err = a.Delete(ctx, entityID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalArchive_EntityIDForms(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	_, err := a.Save(ctx, strings.ToUpper(entityID), "upper.csv", ContentTypeCSV, strings.NewReader("x"))
	require.NoError(t, err)

	for _, id := range []string{entityID, "urn:uuid:" + entityID, "{" + entityID + "}"} {
		files, err := a.List(ctx, id)
		require.NoError(t, err, id)
		assert.Len(t, files, 1, id)
	}

	_, err = a.List(ctx, strings.ReplaceAll(entityID, "-", ""))
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
}
