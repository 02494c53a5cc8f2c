// Package schema holds the one-time DDL applied to a freshly created Core or
// Vault database.
package schema

import (
	"context"
	"fmt"

	"github.com/TheMichaelB/casevault/internal/engine"
)

// Version is written to PRAGMA user_version by every bootstrap.
const Version = 1

// Bootstrap applies a schema to an empty engine.
type Bootstrap func(ctx context.Context, e engine.Engine) error

// Plan, goal and sub-goal status values.
const (
	StatusDraft      = "entwurf"
	StatusActive     = "aktiv"
	StatusEvaluation = "evaluation"
	StatusClosed     = "abgeschlossen"
)

// Observation visibility values.
const (
	VisibilityPrivate = "privat"
	VisibilityTeam    = "team"
	VisibilityGroup   = "gruppe"
)

const coreDDL = `
    PRAGMA user_version = 1;

    CREATE TABLE IF NOT EXISTS student (
        id TEXT PRIMARY KEY,
        vorname TEXT NOT NULL,
        name TEXT NOT NULL,
        geburtstag TEXT,
        adresse TEXT,
        bemerkung TEXT,
        created_at INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS kontakt (
        id TEXT PRIMARY KEY,
        student_id TEXT NOT NULL,
        rolle TEXT NOT NULL,
        name TEXT NOT NULL,
        telefon TEXT,
        email TEXT,
        adresse TEXT,
        FOREIGN KEY(student_id) REFERENCES student(id)
    );

    CREATE TABLE IF NOT EXISTS status_flag (
        id TEXT PRIMARY KEY,
        key TEXT UNIQUE NOT NULL,
        bezeichnung TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS student_status (
        student_id TEXT NOT NULL,
        flag_id TEXT NOT NULL,
        PRIMARY KEY (student_id, flag_id),
        FOREIGN KEY(student_id) REFERENCES student(id),
        FOREIGN KEY(flag_id) REFERENCES status_flag(id)
    );

    CREATE TABLE IF NOT EXISTS rilz_fach (
        id TEXT PRIMARY KEY,
        student_id TEXT NOT NULL,
        fach TEXT NOT NULL,
        details TEXT,
        FOREIGN KEY(student_id) REFERENCES student(id)
    );

    CREATE TABLE IF NOT EXISTS historie (
        id TEXT PRIMARY KEY,
        student_id TEXT NOT NULL,
        titel TEXT NOT NULL,
        beschreibung TEXT,
        von TEXT,
        bis TEXT,
        FOREIGN KEY(student_id) REFERENCES student(id)
    );

    CREATE TABLE IF NOT EXISTS plan (
        id TEXT PRIMARY KEY,
        student_id TEXT NOT NULL,
        titel TEXT NOT NULL,
        status TEXT NOT NULL CHECK(status IN ('entwurf','aktiv','evaluation','abgeschlossen')),
        fach TEXT,
        startdatum TEXT,
        endedatum TEXT,
        created_at INTEGER NOT NULL,
        FOREIGN KEY(student_id) REFERENCES student(id)
    );

    CREATE TABLE IF NOT EXISTS ziel (
        id TEXT PRIMARY KEY,
        plan_id TEXT NOT NULL,
        titel TEXT NOT NULL,
        beschreibung TEXT,
        status TEXT NOT NULL CHECK(status IN ('entwurf','aktiv','evaluation','abgeschlossen')),
        verantwortlich TEXT,
        sort_index INTEGER NOT NULL DEFAULT 0,
        created_at INTEGER NOT NULL,
        FOREIGN KEY(plan_id) REFERENCES plan(id)
    );

    CREATE TABLE IF NOT EXISTS teilziel (
        id TEXT PRIMARY KEY,
        ziel_id TEXT NOT NULL,
        titel TEXT NOT NULL,
        status TEXT NOT NULL CHECK(status IN ('entwurf','aktiv','evaluation','abgeschlossen')),
        sort_index INTEGER NOT NULL DEFAULT 0,
        created_at INTEGER NOT NULL,
        FOREIGN KEY(ziel_id) REFERENCES ziel(id)
    );

    CREATE TABLE IF NOT EXISTS indikator (
        id TEXT PRIMARY KEY,
        ziel_id TEXT NOT NULL,
        text TEXT NOT NULL,
        sort_index INTEGER NOT NULL DEFAULT 0,
        FOREIGN KEY(ziel_id) REFERENCES ziel(id)
    );

    CREATE TABLE IF NOT EXISTS beobachtung (
        id TEXT PRIMARY KEY,
        ziel_id TEXT NOT NULL,
        autor TEXT,
        text TEXT NOT NULL,
        sichtbarkeit TEXT NOT NULL CHECK(sichtbarkeit IN ('privat','team','gruppe')),
        created_at INTEGER NOT NULL,
        edited_at INTEGER,
        FOREIGN KEY(ziel_id) REFERENCES ziel(id)
    );

    CREATE INDEX IF NOT EXISTS idx_plan_student ON plan(student_id);
    CREATE INDEX IF NOT EXISTS idx_ziel_plan ON ziel(plan_id);
    CREATE INDEX IF NOT EXISTS idx_teilziel_ziel ON teilziel(ziel_id);
    CREATE INDEX IF NOT EXISTS idx_beo_ziel_created ON beobachtung(ziel_id, created_at DESC);
    `

// Document bytes are stored in plain columns; the whole database is
// encrypted as one blob.
const vaultDDL = `
    PRAGMA user_version = 1;

    CREATE TABLE IF NOT EXISTS dokument (
        id TEXT PRIMARY KEY,
        student_id TEXT NOT NULL,
        titel TEXT NOT NULL,
        dateiname TEXT NOT NULL,
        mime TEXT NOT NULL,
        groesse_bytes INTEGER NOT NULL,
        sha256 TEXT NOT NULL,
        created_at INTEGER NOT NULL,
        blob BLOB NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_doc_student ON dokument(student_id, created_at DESC);

    CREATE TABLE IF NOT EXISTS foto (
        student_id TEXT PRIMARY KEY,
        mime TEXT NOT NULL,
        groesse_bytes INTEGER NOT NULL,
        created_at INTEGER NOT NULL,
        blob BLOB NOT NULL
    );
    `

// Core creates the student, plan and goal tables.
func Core(ctx context.Context, e engine.Engine) error {
	if err := e.Exec(ctx, coreDDL); err != nil {
		return fmt.Errorf("create core schema: %w", err)
	}
	return nil
}

// Vault creates the document and photo tables.
func Vault(ctx context.Context, e engine.Engine) error {
	if err := e.Exec(ctx, vaultDDL); err != nil {
		return fmt.Errorf("create vault schema: %w", err)
	}
	return nil
}

// None leaves the database empty.
func None(context.Context, engine.Engine) error {
	return nil
}

// UserVersion reads PRAGMA user_version.
func UserVersion(ctx context.Context, e engine.Engine) (int, error) {
	var v int
	if err := e.DB().QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// Tables lists the user tables in name order.
func Tables(ctx context.Context, e engine.Engine) ([]string, error) {
	rows, err := e.DB().QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
