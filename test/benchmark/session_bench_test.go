package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/TheMichaelB/casevault/internal/crypto"
	"github.com/TheMichaelB/casevault/internal/schema"
	"github.com/TheMichaelB/casevault/internal/session"
	"github.com/TheMichaelB/casevault/internal/storage"
	"github.com/TheMichaelB/casevault/test/testutil"
)

func openCore(b *testing.B, store storage.BlobStore, codec string, students int) *session.Session {
	b.Helper()
	ctx := context.Background()

	c, err := crypto.CodecByName(codec)
	if err != nil {
		b.Fatal(err)
	}
	s, err := session.New(session.Options{
		Name:      "core",
		BlobID:    testutil.CoreID,
		Store:     store,
		Salts:     session.NewSaltSource(store, testutil.SaltID, nil, nil),
		KDF:       testutil.FastKDF(),
		Loader:    testutil.Loader(b),
		Bootstrap: schema.Core,
		Codec:     c,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { s.Close() })

	if err := s.Open(ctx, testutil.Passphrase); err != nil {
		b.Fatal(err)
	}

	db, err := s.Handle()
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < students; i++ {
		_, err := db.ExecContext(ctx,
			`INSERT INTO student (id, vorname, name, bemerkung, created_at) VALUES (?, ?, ?, ?, ?)`,
			fmt.Sprintf("s-%d", i), "Mia", "Keller", "Lernstand und Beobachtungen aus dem Unterricht", time.Now().UnixMilli())
		if err != nil {
			b.Fatal(err)
		}
	}
	if err := s.Persist(ctx); err != nil {
		b.Fatal(err)
	}
	return s
}

func BenchmarkPersist(b *testing.B) {
	ctx := context.Background()

	for _, codec := range []string{crypto.CodecNone, crypto.CodecZstd, crypto.CodecSnappy} {
		for _, students := range []int{10, 1000, 10000} {
			b.Run(fmt.Sprintf("%s/%d", codec, students), func(b *testing.B) {
				store := storage.NewMemoryStore()
				s := openCore(b, store, codec, students)

				b.ResetTimer()
				b.ReportAllocs()

				for i := 0; i < b.N; i++ {
					if err := s.Persist(ctx); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkUnlock(b *testing.B) {
	ctx := context.Background()

	for _, students := range []int{10, 1000, 10000} {
		b.Run(fmt.Sprintf("%d", students), func(b *testing.B) {
			store := storage.NewMemoryStore()
			s := openCore(b, store, crypto.CodecNone, students)
			if err := s.Close(); err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if err := s.Open(ctx, testutil.Passphrase); err != nil {
					b.Fatal(err)
				}
				if err := s.Close(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
