package documents_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/casevault/internal/models"
	"github.com/TheMichaelB/casevault/internal/schema"
	"github.com/TheMichaelB/casevault/internal/services/documents"
	"github.com/TheMichaelB/casevault/internal/session"
	"github.com/TheMichaelB/casevault/internal/storage"
	"github.com/TheMichaelB/casevault/test/testutil"
)

func newVault(t *testing.T, store storage.BlobStore) *session.Session {
	t.Helper()
	s, err := session.New(session.Options{
		Name:      "vault",
		BlobID:    testutil.VaultID,
		Store:     store,
		Salts:     session.NewSaltSource(store, testutil.SaltID, nil, nil),
		KDF:       testutil.FastKDF(),
		Loader:    testutil.Loader(t),
		Bootstrap: schema.Vault,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func openService(t *testing.T, store storage.BlobStore) (*documents.Service, *session.Session) {
	t.Helper()
	vault := newVault(t, store)
	require.NoError(t, vault.Open(testutil.TestContext(t), testutil.Passphrase))
	return documents.NewService(vault, nil), vault
}

func TestAddDocument(t *testing.T) {
	ctx := testutil.TestContext(t)
	svc, _ := openService(t, storage.NewMemoryStore())

	meta, content := testutil.SampleDocument("s-1")
	id, digest, err := svc.Add(ctx, content, meta)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), digest)

	got, err := svc.Meta(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.StudentID)
	assert.Equal(t, meta.Title, got.Title)
	assert.Equal(t, meta.FileName, got.FileName)
	assert.Equal(t, meta.MIME, got.MIME)
	assert.Equal(t, int64(len(content)), got.SizeBytes)
	assert.Equal(t, digest, got.SHA256)
	assert.False(t, got.CreatedAt.IsZero())

	blob, err := svc.Blob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, content, blob)
}

func TestAddPersistsImmediately(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := storage.NewMemoryStore()
	svc, vault := openService(t, store)
	writes := store.Writes()

	meta, content := testutil.SampleDocument("s-1")
	id, _, err := svc.Add(ctx, content, meta)
	require.NoError(t, err)
	assert.Equal(t, writes+1, store.Writes())

	// No explicit Persist before close.
	require.NoError(t, vault.Close())
	require.NoError(t, vault.Open(ctx, testutil.Passphrase))

	blob, err := svc.Blob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, content, blob)
}

func TestAddValidation(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := storage.NewMemoryStore()
	svc, _ := openService(t, store)
	writes := store.Writes()

	meta, content := testutil.SampleDocument("s-1")

	tests := []struct {
		name    string
		meta    models.DocumentMeta
		content []byte
		field   string
	}{
		{"missing student", models.DocumentMeta{Title: "a", FileName: "a.txt", MIME: "text/plain"}, content, "student_id"},
		{"missing title", models.DocumentMeta{StudentID: "s-1", FileName: "a.txt", MIME: "text/plain"}, content, "titel"},
		{"missing mime", models.DocumentMeta{StudentID: "s-1", Title: "a", FileName: "a.txt"}, content, "mime"},
		{"empty content", meta, nil, "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Add(ctx, tt.content, tt.meta)
			require.ErrorIs(t, err, models.ErrValidation)

			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.Equal(t, writes, store.Writes())
}

func TestListByStudentNewestFirst(t *testing.T) {
	ctx := testutil.TestContext(t)
	svc, _ := openService(t, storage.NewMemoryStore())

	var ids []string
	for _, title := range []string{"first", "second", "third"} {
		meta, content := testutil.SampleDocument("s-1")
		meta.Title = title
		id, _, err := svc.Add(ctx, content, meta)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	meta, content := testutil.SampleDocument("s-2")
	_, _, err := svc.Add(ctx, content, meta)
	require.NoError(t, err)

	docs, err := svc.ListByStudent(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, ids[2], docs[0].ID)
	assert.Equal(t, ids[1], docs[1].ID)
	assert.Equal(t, ids[0], docs[2].ID)

	none, err := svc.ListByStudent(ctx, "s-3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteDocument(t *testing.T) {
	ctx := testutil.TestContext(t)
	svc, vault := openService(t, storage.NewMemoryStore())

	meta, content := testutil.SampleDocument("s-1")
	id, _, err := svc.Add(ctx, content, meta)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, id))
	require.NoError(t, svc.Delete(ctx, id))

	require.NoError(t, vault.Close())
	require.NoError(t, vault.Open(ctx, testutil.Passphrase))

	_, err = svc.Meta(ctx, id)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = svc.Blob(ctx, id)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPhotoUpsert(t *testing.T) {
	ctx := testutil.TestContext(t)
	svc, vault := openService(t, storage.NewMemoryStore())

	_, err := svc.Photo(ctx, "s-1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, svc.SetPhoto(ctx, photoOf("s-1", testutil.PNGHeader, "image/png")))

	webp := []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")
	require.NoError(t, svc.SetPhoto(ctx, photoOf("s-1", webp, "image/webp")))

	require.NoError(t, vault.Close())
	require.NoError(t, vault.Open(ctx, testutil.Passphrase))

	photo, err := svc.Photo(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", photo.MIME)
	assert.Equal(t, int64(len(webp)), photo.SizeBytes)
	assert.True(t, bytes.Equal(webp, photo.Bytes))

	db, err := vault.Handle()
	require.NoError(t, err)
	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM foto`).Scan(&n))
	assert.Equal(t, 1, n)

	require.NoError(t, svc.DeletePhoto(ctx, "s-1"))
	_, err = svc.Photo(ctx, "s-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetPhotoValidation(t *testing.T) {
	ctx := testutil.TestContext(t)
	svc, _ := openService(t, storage.NewMemoryStore())

	tests := []struct {
		name  string
		in    models.NewPhoto
		field string
	}{
		{"missing student", photoOf("", testutil.PNGHeader, "image/png"), "student_id"},
		{"missing mime", photoOf("s-1", testutil.PNGHeader, ""), "mime"},
		{"nil content", photoOf("s-1", nil, "image/png"), "content"},
		{"empty content", photoOf("s-1", []byte{}, "image/png"), "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SetPhoto(ctx, tt.in)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}

	_, err := svc.Photo(ctx, "s-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func photoOf(studentID string, content []byte, mime string) models.NewPhoto {
	return models.NewPhoto{StudentID: studentID, MIME: mime, Content: content}
}

func TestPersistFailureIsReported(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := testutil.NewFaultyStore(storage.NewMemoryStore())
	svc, _ := openService(t, store)

	before, err := store.Get(ctx, testutil.VaultID)
	require.NoError(t, err)

	store.FailSet(testutil.VaultID, true)
	meta, content := testutil.SampleDocument("s-1")
	_, _, err = svc.Add(ctx, content, meta)
	assert.ErrorIs(t, err, models.ErrStorage)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	after, err := store.Get(ctx, testutil.VaultID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestClosedSession(t *testing.T) {
	ctx := testutil.TestContext(t)
	svc := documents.NewService(newVault(t, storage.NewMemoryStore()), nil)

	meta, content := testutil.SampleDocument("s-1")
	_, _, err := svc.Add(ctx, content, meta)
	assert.ErrorIs(t, err, models.ErrNotOpen)

	_, err = svc.ListByStudent(ctx, "s-1")
	assert.ErrorIs(t, err, models.ErrNotOpen)
	_, err = svc.Blob(ctx, "x")
	assert.ErrorIs(t, err, models.ErrNotOpen)
	assert.ErrorIs(t, svc.Delete(ctx, "x"), models.ErrNotOpen)
	assert.ErrorIs(t, svc.SetPhoto(ctx, photoOf("s-1", testutil.PNGHeader, "image/png")), models.ErrNotOpen)
	_, err = svc.Photo(ctx, "s-1")
	assert.ErrorIs(t, err, models.ErrNotOpen)
	assert.ErrorIs(t, svc.DeletePhoto(ctx, "s-1"), models.ErrNotOpen)
}
