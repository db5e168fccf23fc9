package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type migrateEngine struct {
	db *sql.DB
}

type migration struct {
	name string
	up   []string
}

var migrations = []migration{
	{
		name: "2024_01_01_000001_create_reviewers",
		up: []string{
			`CREATE TABLE reviewers (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE role_preferences (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				reviewer_id TEXT NOT NULL REFERENCES reviewers(id) ON DELETE CASCADE,
				specialization TEXT NOT NULL,
				queue_max INTEGER NOT NULL,
				willing INTEGER NOT NULL DEFAULT 0,
				max_authority INTEGER NOT NULL DEFAULT 0,
				UNIQUE (reviewer_id, specialization)
			)`,
		},
	},
	{
		name: "2024_01_01_000002_create_referrals",
		up: []string{
			`CREATE TABLE referrals (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				referrer_id TEXT NOT NULL,
				candidate_ref TEXT NOT NULL UNIQUE,
				candidate_name TEXT NOT NULL DEFAULT '',
				specializations TEXT NOT NULL,
				rating INTEGER NOT NULL,
				notes TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL
			)`,
		},
	},
	{
		name: "2024_01_01_000003_create_interviews",
		up: []string{
			`CREATE TABLE interviews (
				id TEXT PRIMARY KEY,
				specialization TEXT NOT NULL,
				candidate_ref TEXT NOT NULL,
				candidate_name TEXT NOT NULL DEFAULT '',
				referrer_id TEXT NOT NULL DEFAULT '',
				hiring_manager_id TEXT NOT NULL,
				application_manager_id TEXT NOT NULL,
				thread_ref TEXT NOT NULL DEFAULT '',
				tasks_finalized INTEGER NOT NULL DEFAULT 0,
				complete INTEGER NOT NULL DEFAULT 0,
				hire_decision INTEGER NULL,
				summary TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				closed_at DATETIME NULL,
				UNIQUE (candidate_ref, specialization)
			)`,
			`CREATE INDEX interviews_thread_ref ON interviews (thread_ref)`,
			`CREATE INDEX interviews_hm ON interviews (specialization, hiring_manager_id)`,
			`CREATE INDEX interviews_am ON interviews (specialization, application_manager_id)`,
		},
	},
	{
		name: "2024_01_01_000004_create_tasks",
		up: []string{
			`CREATE TABLE tasks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				interview_id TEXT NOT NULL REFERENCES interviews(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				work TEXT NOT NULL DEFAULT '',
				UNIQUE (interview_id, name)
			)`,
			`CREATE TABLE task_evaluations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				task_id INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
				role INTEGER NOT NULL,
				reviewer_id TEXT NOT NULL,
				pass INTEGER NULL,
				report TEXT NOT NULL DEFAULT '',
				UNIQUE (task_id, role)
			)`,
		},
	},
	{
		name: "2024_01_01_000005_create_interview_evaluations",
		up: []string{
			`CREATE TABLE interview_evaluations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				interview_id TEXT NOT NULL REFERENCES interviews(id) ON DELETE CASCADE,
				role INTEGER NOT NULL,
				reviewer_id TEXT NOT NULL,
				pass INTEGER NULL,
				score INTEGER NULL,
				report TEXT NOT NULL DEFAULT '',
				UNIQUE (interview_id, role)
			)`,
		},
	},
}

func newMigrationEngine(db *sql.DB) *migrateEngine {
	return &migrateEngine{
		db: db,
	}
}

func (e *migrateEngine) maxBatch(ctx context.Context) (int, error) {
	max := 0
	row := e.db.QueryRowContext(ctx, `SELECT COALESCE(max(batch), 0) FROM migrations`)
	err := row.Scan(&max)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}

	return max, nil
}

// get names of applied migrations
func (e *migrateEngine) appliedMigrations(ctx context.Context) (map[string]struct{}, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT migration FROM migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := map[string]struct{}{}
	for rows.Next() {
		var name string
		err := rows.Scan(&name)
		if err != nil {
			return nil, err
		}
		list[name] = struct{}{}
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// apply runs migration statements and registers it in one transaction
func (e *migrateEngine) apply(ctx context.Context, m migration, batch int) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range m.up {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO migrations (migration, batch) VALUES (?,?)`, m.name, batch)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (e *migrateEngine) run(ctx context.Context) error {
	// create migration table if does not exists
	_, err := e.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		migration varchar(255) NOT NULL,
		batch int(11) NOT NULL
	)`)
	if err != nil {
		return errors.Wrap(err, "can not create migration table")
	}

	// get list of applied migrations and find not applied our migrations
	toApply := []migration{}
	applied, err := e.appliedMigrations(ctx)
	if err != nil {
		return errors.Wrap(err, "can not get list of applied migrations")
	}

	for _, m := range migrations {
		_, ok := applied[m.name]
		if !ok {
			toApply = append(toApply, m)
		}
	}

	if len(toApply) == 0 {
		return nil
	}

	// find last migration batch id and calculate next id
	currentBatch, err := e.maxBatch(ctx)
	if err != nil {
		return errors.Wrap(err, "can not get max batch")
	}

	nextBatch := currentBatch + 1
	for _, m := range toApply {
		err = e.apply(ctx, m, nextBatch)
		if err != nil {
			return errors.Wrapf(err, "can not apply migration %q", m.name)
		}
	}

	return nil
}
