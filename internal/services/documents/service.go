// Package documents stores document files and student photos in the Vault
// store. Every mutation persists the Vault session before returning.
package documents

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TheMichaelB/casevault/internal/events"
	"github.com/TheMichaelB/casevault/internal/models"
)

// Database is the open Vault store.
type Database interface {
	Handle() (*sql.DB, error)
	Persist(ctx context.Context) error
}

// Service manages documents and photos.
type Service struct {
	db     Database
	logger *events.Logger
	now    func() time.Time
}

// NewService creates a document service on the Vault store.
func NewService(db Database, logger *events.Logger) *Service {
	if logger == nil {
		logger = events.Nop()
	}
	return &Service{
		db:     db,
		logger: logger.WithField("service", "documents"),
		now:    time.Now,
	}
}

// Add stores content under meta and returns the new id and the SHA-256 hex
// digest of the content.
func (s *Service) Add(ctx context.Context, content []byte, meta models.DocumentMeta) (string, string, error) {
	if err := models.Validate(meta); err != nil {
		return "", "", err
	}
	if len(content) == 0 {
		return "", "", &models.ValidationError{Field: "content", Reason: "must not be empty"}
	}

	db, err := s.db.Handle()
	if err != nil {
		return "", "", err
	}

	id := uuid.NewString()
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	_, err = db.ExecContext(ctx, `
		INSERT INTO dokument (id, student_id, titel, dateiname, mime, groesse_bytes, sha256, created_at, blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, meta.StudentID, meta.Title, meta.FileName, meta.MIME,
		len(content), digest, s.now().UnixMilli(), content,
	)
	if err != nil {
		return "", "", fmt.Errorf("insert document: %w", err)
	}

	if err := s.db.Persist(ctx); err != nil {
		return "", "", err
	}

	s.logger.WithFields(map[string]interface{}{
		"document_id": id,
		"student_id":  meta.StudentID,
		"size":        len(content),
	}).Info("Added document")
	return id, digest, nil
}

// ListByStudent returns document metadata for a student, newest first.
func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]models.Document, error) {
	db, err := s.db.Handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, student_id, titel, dateiname, mime, groesse_bytes, sha256, created_at
		FROM dokument
		WHERE student_id = ?
		ORDER BY created_at DESC, rowid DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}

// Meta returns a document's metadata or models.ErrNotFound.
func (s *Service) Meta(ctx context.Context, id string) (*models.Document, error) {
	db, err := s.db.Handle()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, student_id, titel, dateiname, mime, groesse_bytes, sha256, created_at
		FROM dokument WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &doc, nil
}

// Blob returns a document's content or models.ErrNotFound.
func (s *Service) Blob(ctx context.Context, id string) ([]byte, error) {
	db, err := s.db.Handle()
	if err != nil {
		return nil, err
	}

	var content []byte
	err = db.QueryRowContext(ctx, `SELECT blob FROM dokument WHERE id = ?`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", id, err)
	}
	return content, nil
}

// Delete removes a document. Deleting an unknown id is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	db, err := s.db.Handle()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM dokument WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if err := s.db.Persist(ctx); err != nil {
		return err
	}

	n, _ := res.RowsAffected()
	s.logger.WithFields(map[string]interface{}{
		"document_id": id,
		"deleted":     n,
	}).Info("Deleted document")
	return nil
}

// SetPhoto stores the photo of a student, replacing any previous one.
func (s *Service) SetPhoto(ctx context.Context, in models.NewPhoto) error {
	if err := models.Validate(in); err != nil {
		return err
	}

	db, err := s.db.Handle()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO foto (student_id, mime, groesse_bytes, created_at, blob)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(student_id) DO UPDATE SET
			mime = excluded.mime,
			groesse_bytes = excluded.groesse_bytes,
			created_at = excluded.created_at,
			blob = excluded.blob`,
		in.StudentID, in.MIME, len(in.Content), s.now().UnixMilli(), in.Content,
	)
	if err != nil {
		return fmt.Errorf("store photo: %w", err)
	}
	if err := s.db.Persist(ctx); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"student_id": in.StudentID,
		"size":       len(in.Content),
	}).Info("Stored photo")
	return nil
}

// Photo returns the photo of a student or models.ErrNotFound.
func (s *Service) Photo(ctx context.Context, studentID string) (*models.Photo, error) {
	db, err := s.db.Handle()
	if err != nil {
		return nil, err
	}

	p := models.Photo{StudentID: studentID}
	var created int64
	err = db.QueryRowContext(ctx, `
		SELECT mime, groesse_bytes, created_at, blob
		FROM foto WHERE student_id = ?`, studentID).Scan(&p.MIME, &p.SizeBytes, &created, &p.Bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("photo %s: %w", studentID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read photo %s: %w", studentID, err)
	}
	p.CreatedAt = time.UnixMilli(created)
	return &p, nil
}

// DeletePhoto removes the photo of a student.
func (s *Service) DeletePhoto(ctx context.Context, studentID string) error {
	db, err := s.db.Handle()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM foto WHERE student_id = ?`, studentID); err != nil {
		return fmt.Errorf("delete photo %s: %w", studentID, err)
	}
	if err := s.db.Persist(ctx); err != nil {
		return err
	}

	s.logger.WithField("student_id", studentID).Info("Deleted photo")
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (models.Document, error) {
	var (
		doc     models.Document
		created int64
	)
	err := row.Scan(&doc.ID, &doc.StudentID, &doc.Title, &doc.FileName, &doc.MIME,
		&doc.SizeBytes, &doc.SHA256, &created)
	if err != nil {
		return models.Document{}, err
	}
	doc.CreatedAt = time.UnixMilli(created)
	return doc, nil
}
