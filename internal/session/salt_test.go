package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/casevault/internal/crypto"
	"github.com/TheMichaelB/casevault/internal/session"
	"github.com/TheMichaelB/casevault/internal/storage"
	"github.com/TheMichaelB/casevault/test/testutil"
)

func TestSaltSourceCreatesOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	salts := session.NewSaltSource(store, testutil.SaltID, nil, nil)

	exists, err := salts.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	const callers = 16
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			salt, err := salts.Salt(ctx)
			assert.NoError(t, err)
			results[i] = salt
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.Writes())
	for _, salt := range results {
		assert.Len(t, salt, crypto.SaltSize)
		assert.Equal(t, results[0], salt)
	}

	exists, err = salts.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSaltSourceReusesStoredSalt(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	want := []byte("0123456789abcdef")
	encoded, err := storage.EncodeSalt(want)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, testutil.SaltID, encoded))

	got, err := session.NewSaltSource(store, testutil.SaltID, nil, nil).Salt(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, store.Writes())
}

func TestSaltSourceReturnsCopies(t *testing.T) {
	ctx := context.Background()
	salts := session.NewSaltSource(storage.NewMemoryStore(), testutil.SaltID, nil, nil)

	first, err := salts.Salt(ctx)
	require.NoError(t, err)
	crypto.Zero(first)

	second, err := salts.Salt(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, make([]byte, crypto.SaltSize), second)
}

func TestSaltSourceRejectsMalformedSalt(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		record string
	}{
		{"wrong length", "[1,2,3]"},
		{"not json", "salt"},
		{"out of range", "[1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,999]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			require.NoError(t, store.Set(ctx, testutil.SaltID, []byte(tt.record)))

			_, err := session.NewSaltSource(store, testutil.SaltID, nil, nil).Salt(ctx)
			assert.ErrorIs(t, err, storage.ErrMalformedRecord)

			// Never silently replaced.
			raw, err := store.Get(ctx, testutil.SaltID)
			require.NoError(t, err)
			assert.Equal(t, tt.record, string(raw))
		})
	}
}

func TestSaltSourceForget(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	salts := session.NewSaltSource(store, testutil.SaltID, nil, nil)

	first, err := salts.Salt(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, testutil.SaltID))
	salts.Forget()

	second, err := salts.Salt(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, store.Writes())
}

func TestSaltSourceStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFaultyStore(storage.NewMemoryStore())
	store.FailSet(testutil.SaltID, true)
	salts := session.NewSaltSource(store, testutil.SaltID, nil, nil)

	_, err := salts.Salt(ctx)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	store.FailSet(testutil.SaltID, false)
	salt, err := salts.Salt(ctx)
	require.NoError(t, err)
	assert.Len(t, salt, crypto.SaltSize)
}
