package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

const interviewColumns = `id, specialization, candidate_ref, candidate_name, referrer_id,
	hiring_manager_id, application_manager_id, thread_ref, tasks_finalized, complete,
	hire_decision, summary, created_at, closed_at`

func scanInterview(s scanner) (hiring.Interview, error) {
	var (
		iv       hiring.Interview
		decision sql.NullBool
		closedAt sql.NullTime
	)
	err := s.Scan(&iv.ID, &iv.Specialization, &iv.CandidateRef, &iv.CandidateName, &iv.ReferrerID,
		&iv.HiringManagerID, &iv.ApplicationManagerID, &iv.ThreadRef, &iv.TasksFinalized, &iv.Complete,
		&decision, &iv.Summary, &iv.CreatedAt, &closedAt)
	if err != nil {
		return hiring.Interview{}, err
	}
	iv.HireDecision = nullBool(decision)
	if closedAt.Valid {
		t := closedAt.Time
		iv.ClosedAt = &t
	}
	return iv, nil
}

func (t *tx) CreateInterview(ctx context.Context, iv *hiring.Interview) error {
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = time.Now()
	}
	_, err := t.tx.ExecContext(ctx, `INSERT INTO interviews
		(id, specialization, candidate_ref, candidate_name, referrer_id,
		 hiring_manager_id, application_manager_id, thread_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, string(iv.Specialization), iv.CandidateRef, iv.CandidateName, iv.ReferrerID,
		iv.HiringManagerID, iv.ApplicationManagerID, iv.ThreadRef, iv.CreatedAt.UTC())
	return translate(err, "insert interview")
}

func (t *tx) Interview(ctx context.Context, id string) (hiring.Interview, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, id)
	iv, err := scanInterview(row)
	return iv, translate(err, "select interview")
}

func (t *tx) InterviewByCandidate(ctx context.Context, candidateRef string, spec hiring.Specialization) (hiring.Interview, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+interviewColumns+` FROM interviews
		WHERE candidate_ref = ? AND specialization = ?`, candidateRef, string(spec))
	iv, err := scanInterview(row)
	return iv, translate(err, "select interview by candidate")
}

func (t *tx) InterviewByThread(ctx context.Context, threadRef string) (hiring.Interview, error) {
	if threadRef == "" {
		return hiring.Interview{}, translate(sql.ErrNoRows, "select interview by thread")
	}
	row := t.tx.QueryRowContext(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE thread_ref = ?`, threadRef)
	iv, err := scanInterview(row)
	return iv, translate(err, "select interview by thread")
}

func (t *tx) Interviews(ctx context.Context, f hiring.InterviewFilter) ([]hiring.Interview, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.ReviewerID != "" {
		where = append(where, `(hiring_manager_id = ? OR application_manager_id = ?)`)
		args = append(args, f.ReviewerID, f.ReviewerID)
	}
	if f.Specialization != "" {
		where = append(where, `specialization = ?`)
		args = append(args, string(f.Specialization))
	}
	if f.Complete != nil {
		where = append(where, `complete = ?`)
		args = append(args, *f.Complete)
	}

	query := `SELECT ` + interviewColumns + ` FROM interviews`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at, id`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "select interviews")
	}
	defer rows.Close()

	var out []hiring.Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, translate(err, "scan interview")
		}
		out = append(out, iv)
	}
	return out, translate(rows.Err(), "select interviews")
}

func (t *tx) SetThread(ctx context.Context, id, threadRef string) error {
	ok, err := t.exec(ctx, "set thread", `UPDATE interviews SET thread_ref = ? WHERE id = ?`, threadRef, id)
	if err != nil {
		return err
	}
	if !ok {
		return translate(sql.ErrNoRows, "set thread")
	}
	return nil
}

func (t *tx) DeleteInterview(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM interviews WHERE id = ?`, id)
	return translate(err, "delete interview")
}

func (t *tx) MarkTasksFinalized(ctx context.Context, id string) (bool, error) {
	return t.exec(ctx, "mark tasks finalized", `UPDATE interviews SET tasks_finalized = 1
		WHERE id = ? AND tasks_finalized = 0 AND complete = 0`, id)
}

func (t *tx) MarkComplete(ctx context.Context, id, summary string, closedAt time.Time) (bool, error) {
	return t.exec(ctx, "mark complete", `UPDATE interviews SET complete = 1, summary = ?, closed_at = ?
		WHERE id = ? AND tasks_finalized = 1 AND complete = 0`, summary, closedAt.UTC(), id)
}

func (t *tx) SetHireDecision(ctx context.Context, id string, hire bool) (bool, error) {
	return t.exec(ctx, "set hire decision", `UPDATE interviews SET hire_decision = ?
		WHERE id = ? AND complete = 1`, hire, id)
}
