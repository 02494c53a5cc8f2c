// Package students reads and writes student and contact records in the Core
// store. Mutations are not persisted here; the caller decides when to call
// Persist on the Core session.
package students

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TheMichaelB/casevault/internal/events"
	"github.com/TheMichaelB/casevault/internal/models"
)

// Database is the open Core store.
type Database interface {
	Handle() (*sql.DB, error)
}

// Service manages student records.
type Service struct {
	db     Database
	logger *events.Logger
	now    func() time.Time
}

// NewService creates a student service on the Core store.
func NewService(db Database, logger *events.Logger) *Service {
	if logger == nil {
		logger = events.Nop()
	}
	return &Service{
		db:     db,
		logger: logger.WithField("service", "students"),
		now:    time.Now,
	}
}

// Add inserts a student and returns its id. An empty input id gets a new UUID.
func (s *Service) Add(ctx context.Context, in models.NewStudent) (string, error) {
	if err := models.Validate(in); err != nil {
		return "", err
	}

	db, err := s.db.Handle()
	if err != nil {
		return "", err
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO student (id, vorname, name, geburtstag, adresse, bemerkung, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, in.FirstName, in.LastName,
		nullable(in.Birthday), nullable(in.Address), nullable(in.Remark),
		s.now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert student: %w", err)
	}

	s.logger.WithField("student_id", id).Debug("Added student")
	return id, nil
}

// List returns all students ordered by last name, then first name.
func (s *Service) List(ctx context.Context) ([]models.Student, error) {
	db, err := s.db.Handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, vorname, name, geburtstag, adresse, bemerkung, created_at
		FROM student
		ORDER BY name, vorname`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var out []models.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("list students: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	s.logger.WithField("count", len(out)).Debug("Listed students")
	return out, nil
}

// Get returns one student or models.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.Student, error) {
	db, err := s.db.Handle()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, vorname, name, geburtstag, adresse, bemerkung, created_at
		FROM student WHERE id = ?`, id)

	st, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("student %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get student %s: %w", id, err)
	}
	return &st, nil
}

// AddContact attaches a contact person to an existing student.
func (s *Service) AddContact(ctx context.Context, in models.NewContact) (string, error) {
	if err := models.Validate(in); err != nil {
		return "", err
	}

	db, err := s.db.Handle()
	if err != nil {
		return "", err
	}

	var exists int
	err = db.QueryRowContext(ctx, `SELECT count(*) FROM student WHERE id = ?`, in.StudentID).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("check student: %w", err)
	}
	if exists == 0 {
		return "", &models.ValidationError{Field: "student_id", Reason: "unknown student"}
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx, `
		INSERT INTO kontakt (id, student_id, rolle, name, telefon, email, adresse)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, in.StudentID, in.Role, in.Name,
		nullable(in.Phone), nullable(in.Email), nullable(in.Address),
	)
	if err != nil {
		return "", fmt.Errorf("insert contact: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"student_id": in.StudentID,
		"contact_id": id,
	}).Debug("Added contact")
	return id, nil
}

// ListContacts returns the contacts of one student ordered by role and name.
func (s *Service) ListContacts(ctx context.Context, studentID string) ([]models.Contact, error) {
	db, err := s.db.Handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, student_id, rolle, name, telefon, email, adresse
		FROM kontakt
		WHERE student_id = ?
		ORDER BY rolle, name`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []models.Contact
	for rows.Next() {
		var (
			c                     models.Contact
			phone, email, address sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.StudentID, &c.Role, &c.Name, &phone, &email, &address); err != nil {
			return nil, fmt.Errorf("list contacts: %w", err)
		}
		c.Phone, c.Email, c.Address = phone.String, email.String, address.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (models.Student, error) {
	var (
		st                        models.Student
		birthday, address, remark sql.NullString
		created                   int64
	)
	if err := row.Scan(&st.ID, &st.FirstName, &st.LastName, &birthday, &address, &remark, &created); err != nil {
		return models.Student{}, err
	}
	st.Birthday, st.Address, st.Remark = birthday.String, address.String, remark.String
	st.CreatedAt = time.UnixMilli(created)
	return st, nil
}

// nullable stores empty optional columns as NULL.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
