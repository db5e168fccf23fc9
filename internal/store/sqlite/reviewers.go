package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

func (t *tx) Reviewer(ctx context.Context, id string) (hiring.Reviewer, error) {
	r := hiring.Reviewer{}
	row := t.tx.QueryRowContext(ctx, `SELECT id, name FROM reviewers WHERE id = ?`, id)
	if err := row.Scan(&r.ID, &r.Name); err != nil {
		return hiring.Reviewer{}, translate(err, "select reviewer")
	}

	rows, err := t.tx.QueryContext(ctx, `SELECT reviewer_id, specialization, queue_max, willing, max_authority
		FROM role_preferences WHERE reviewer_id = ? ORDER BY specialization`, id)
	if err != nil {
		return hiring.Reviewer{}, translate(err, "select preferences")
	}
	defer rows.Close()

	for rows.Next() {
		var p hiring.RolePreference
		if err := rows.Scan(&p.ReviewerID, &p.Specialization, &p.QueueMax, &p.WillingToInterview, &p.MaxAuthority); err != nil {
			return hiring.Reviewer{}, translate(err, "scan preference")
		}
		r.Preferences = append(r.Preferences, p)
	}
	return r, translate(rows.Err(), "select preferences")
}

func (t *tx) SaveReviewer(ctx context.Context, r hiring.Reviewer) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO reviewers (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`, r.ID, r.Name)
	return translate(err, "save reviewer")
}

func (t *tx) UpsertRolePreference(ctx context.Context, p hiring.RolePreference) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO role_preferences
		(reviewer_id, specialization, queue_max, willing, max_authority)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (reviewer_id, specialization) DO UPDATE SET
			queue_max = excluded.queue_max,
			willing = excluded.willing,
			max_authority = excluded.max_authority`,
		p.ReviewerID, string(p.Specialization), p.QueueMax, p.WillingToInterview, int(p.MaxAuthority))
	return translate(err, "upsert preference")
}

func (t *tx) DeleteRolePreference(ctx context.Context, reviewerID string, spec hiring.Specialization) error {
	ok, err := t.exec(ctx, "delete preference", `DELETE FROM role_preferences WHERE reviewer_id = ? AND specialization = ?`,
		reviewerID, string(spec))
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(hiring.ErrNotFound, "delete preference")
	}
	return nil
}

// Candidates computes workload from the interview table: the number of
// distinct interviews of the specialization where the reviewer is either manager.
func (t *tx) Candidates(ctx context.Context, q hiring.CandidateQuery) ([]hiring.Candidate, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT p.reviewer_id, p.specialization, p.queue_max, p.willing, p.max_authority,
			(SELECT COUNT(*) FROM interviews i
				WHERE i.specialization = p.specialization
				AND (i.hiring_manager_id = p.reviewer_id OR i.application_manager_id = p.reviewer_id)
				AND (? OR i.complete = 0)) AS workload
		FROM role_preferences p
		WHERE p.specialization = ? AND p.max_authority = ? AND p.willing = ? AND p.reviewer_id <> ?
		ORDER BY workload, p.reviewer_id`,
		q.CountClosed, string(q.Specialization), int(q.MaxAuthority), q.WillingToInterview, q.ExcludeReviewerID)
	if err != nil {
		return nil, translate(err, "select candidates")
	}
	defer rows.Close()

	var out []hiring.Candidate
	for rows.Next() {
		var c hiring.Candidate
		p := &c.Preference
		if err := rows.Scan(&p.ReviewerID, &p.Specialization, &p.QueueMax, &p.WillingToInterview, &p.MaxAuthority, &c.Workload); err != nil {
			return nil, translate(err, "scan candidate")
		}
		out = append(out, c)
	}
	return out, translate(rows.Err(), "select candidates")
}

func (t *tx) CreateReferral(ctx context.Context, r *hiring.Referral) error {
	specs := make([]string, len(r.Specializations))
	for i, s := range r.Specializations {
		specs[i] = string(s)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := t.tx.ExecContext(ctx, `INSERT INTO referrals
		(referrer_id, candidate_ref, candidate_name, specializations, rating, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ReferrerID, r.CandidateRef, r.CandidateName, strings.Join(specs, ","), r.Rating, r.Notes, r.CreatedAt.UTC())
	if err != nil {
		return translate(err, "insert referral")
	}
	r.ID, err = res.LastInsertId()
	return errors.Wrap(err, "insert referral")
}

const referralColumns = `id, referrer_id, candidate_ref, candidate_name, specializations, rating, notes, created_at`

func scanReferral(s scanner) (hiring.Referral, error) {
	var (
		r     hiring.Referral
		specs string
	)
	err := s.Scan(&r.ID, &r.ReferrerID, &r.CandidateRef, &r.CandidateName, &specs, &r.Rating, &r.Notes, &r.CreatedAt)
	if err != nil {
		return hiring.Referral{}, err
	}
	for _, name := range strings.Split(specs, ",") {
		if name != "" {
			r.Specializations = append(r.Specializations, hiring.Specialization(name))
		}
	}
	return r, nil
}

func (t *tx) Referral(ctx context.Context, candidateRef string) (hiring.Referral, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+referralColumns+` FROM referrals WHERE candidate_ref = ?`, candidateRef)
	r, err := scanReferral(row)
	return r, translate(err, "select referral")
}

func (t *tx) Referrals(ctx context.Context) ([]hiring.Referral, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+referralColumns+` FROM referrals ORDER BY created_at, id`)
	if err != nil {
		return nil, translate(err, "select referrals")
	}
	defer rows.Close()

	var out []hiring.Referral
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, translate(err, "scan referral")
		}
		out = append(out, r)
	}
	return out, translate(rows.Err(), "select referrals")
}

func (t *tx) DeleteReferral(ctx context.Context, candidateRef string) error {
	ok, err := t.exec(ctx, "delete referral", `DELETE FROM referrals WHERE candidate_ref = ?`, candidateRef)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(hiring.ErrNotFound, "delete referral")
	}
	return nil
}
