package testutil

import (
	"github.com/TheMichaelB/casevault/internal/models"
)

// Passphrases used across store tests.
const (
	Passphrase      = "alpha123"
	WrongPassphrase = "wrong999"
)

// Record ids used by the default configuration.
const (
	SaltID  = "kdf-salt"
	CoreID  = "db-core"
	VaultID = "db-vault"
)

// SampleStudents returns students in insertion order.
func SampleStudents() []models.NewStudent {
	return []models.NewStudent{
		{FirstName: "Mia", LastName: "Keller", Birthday: "2014-03-09"},
		{FirstName: "Jonas", LastName: "Albrecht", Address: "Lindenweg 4"},
		{FirstName: "Lea", LastName: "Keller", Remark: "Zwillingsschwester"},
	}
}

// SampleDocument returns a small text document for studentID.
func SampleDocument(studentID string) (models.DocumentMeta, []byte) {
	return models.DocumentMeta{
		StudentID: studentID,
		Title:     "Förderplan 2024",
		FileName:  "foerderplan.txt",
		MIME:      "text/plain",
	}, []byte("Ziel: Lesen in Silben\n")
}

// PNGHeader is enough of a PNG to stand in for a photo.
var PNGHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
