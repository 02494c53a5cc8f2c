package models

import "time"

// NewStudent is the input for creating a student record in the Core store.
type NewStudent struct {
	ID        string `json:"id,omitempty" validate:"omitempty,max=64"`
	FirstName string `json:"vorname" validate:"required,max=200"`
	LastName  string `json:"name" validate:"required,max=200"`
	Birthday  string `json:"geburtstag,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Address   string `json:"adresse,omitempty" validate:"max=1000"`
	Remark    string `json:"bemerkung,omitempty"`
}

// Student is a row of the student table.
type Student struct {
	ID        string    `json:"id"`
	FirstName string    `json:"vorname"`
	LastName  string    `json:"name"`
	Birthday  string    `json:"geburtstag,omitempty"`
	Address   string    `json:"adresse,omitempty"`
	Remark    string    `json:"bemerkung,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewContact is the input for attaching a contact person to a student.
type NewContact struct {
	StudentID string `json:"student_id" validate:"required"`
	Role      string `json:"rolle" validate:"required,max=100"`
	Name      string `json:"name" validate:"required,max=200"`
	Phone     string `json:"telefon,omitempty" validate:"max=50"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Address   string `json:"adresse,omitempty" validate:"max=1000"`
}

// Contact is a row of the kontakt table.
type Contact struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Role      string `json:"rolle"`
	Name      string `json:"name"`
	Phone     string `json:"telefon,omitempty"`
	Email     string `json:"email,omitempty"`
	Address   string `json:"adresse,omitempty"`
}

// DocumentMeta describes a document being added to the Vault store.
type DocumentMeta struct {
	StudentID string `json:"student_id" validate:"required"`
	Title     string `json:"titel" validate:"required,max=300"`
	FileName  string `json:"dateiname" validate:"required,max=255"`
	MIME      string `json:"mime" validate:"required,max=127"`
}

// Document is a row of the dokument table without its content.
type Document struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Title     string    `json:"titel"`
	FileName  string    `json:"dateiname"`
	MIME      string    `json:"mime"`
	SizeBytes int64     `json:"groesse_bytes"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPhoto is the input for setting the portrait of a student.
type NewPhoto struct {
	StudentID string `json:"student_id" validate:"required"`
	MIME      string `json:"mime" validate:"required,max=127"`
	Content   []byte `json:"content" validate:"required,min=1"`
}

// Photo is the single portrait stored per student.
type Photo struct {
	StudentID string    `json:"student_id"`
	MIME      string    `json:"mime"`
	SizeBytes int64     `json:"groesse_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Bytes     []byte    `json:"-"`
}
