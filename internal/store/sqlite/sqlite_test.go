package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func inTx(t *testing.T, s *Store, fn func(tx hiring.Tx) error) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), fn))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	var batches int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(DISTINCT batch) FROM migrations`).Scan(&batches))
	assert.Equal(t, 1, batches)
}

func TestReviewerPreferences(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx hiring.Tx) error {
		require.NoError(t, tx.SaveReviewer(ctx, hiring.Reviewer{ID: "alice", Name: "Alice"}))
		require.NoError(t, tx.UpsertRolePreference(ctx, hiring.RolePreference{
			ReviewerID: "alice", Specialization: hiring.SpecBuilder, QueueMax: 2,
			WillingToInterview: true, MaxAuthority: hiring.AuthorityHiringManager,
		}))
		// second upsert on the same key updates in place
		require.NoError(t, tx.UpsertRolePreference(ctx, hiring.RolePreference{
			ReviewerID: "alice", Specialization: hiring.SpecBuilder, QueueMax: 3,
			MaxAuthority: hiring.AuthorityApplicationManager,
		}))
		return nil
	})

	inTx(t, s, func(tx hiring.Tx) error {
		r, err := tx.Reviewer(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, r.Preferences, 1)
		p := r.Preferences[0]
		assert.Equal(t, 3, p.QueueMax)
		assert.False(t, p.WillingToInterview)
		assert.Equal(t, hiring.AuthorityApplicationManager, p.MaxAuthority)

		err = tx.DeleteRolePreference(ctx, "alice", hiring.SpecAnimator)
		assert.True(t, errors.Is(err, hiring.ErrNotFound))

		_, err = tx.Reviewer(ctx, "bob")
		assert.True(t, errors.Is(err, hiring.ErrNotFound))
		return nil
	})
}

func TestCandidatesWorkload(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx hiring.Tx) error {
		for _, id := range []string{"a", "b"} {
			require.NoError(t, tx.SaveReviewer(ctx, hiring.Reviewer{ID: id}))
			require.NoError(t, tx.UpsertRolePreference(ctx, hiring.RolePreference{
				ReviewerID: id, Specialization: hiring.SpecProgrammer, QueueMax: 5,
				WillingToInterview: true, MaxAuthority: hiring.AuthorityHiringManager,
			}))
		}
		require.NoError(t, tx.CreateInterview(ctx, &hiring.Interview{
			ID: "iv1", Specialization: hiring.SpecProgrammer, CandidateRef: "c1",
			HiringManagerID: "a", ApplicationManagerID: "a",
		}))
		require.NoError(t, tx.CreateInterview(ctx, &hiring.Interview{
			ID: "iv2", Specialization: hiring.SpecProgrammer, CandidateRef: "c2",
			HiringManagerID: "a", ApplicationManagerID: "b",
		}))
		// other specialization does not count
		require.NoError(t, tx.CreateInterview(ctx, &hiring.Interview{
			ID: "iv3", Specialization: hiring.SpecBuilder, CandidateRef: "c3",
			HiringManagerID: "b", ApplicationManagerID: "b",
		}))
		ok, err := tx.MarkTasksFinalized(ctx, "iv2")
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = tx.MarkComplete(ctx, "iv2", "done", time.Now())
		require.NoError(t, err)
		require.True(t, ok)
		return nil
	})

	query := hiring.CandidateQuery{
		Specialization:     hiring.SpecProgrammer,
		MaxAuthority:       hiring.AuthorityHiringManager,
		WillingToInterview: true,
	}
	workload := func(q hiring.CandidateQuery) map[string]int {
		out := map[string]int{}
		inTx(t, s, func(tx hiring.Tx) error {
			cands, err := tx.Candidates(ctx, q)
			require.NoError(t, err)
			for _, c := range cands {
				out[c.Preference.ReviewerID] = c.Workload
			}
			return nil
		})
		return out
	}

	assert.Equal(t, map[string]int{"a": 1, "b": 0}, workload(query))

	query.CountClosed = true
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, workload(query))

	query.ExcludeReviewerID = "a"
	assert.Equal(t, map[string]int{"b": 1}, workload(query))
}

func TestInterviewUniqueness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx hiring.Tx) error {
		require.NoError(t, tx.CreateInterview(ctx, &hiring.Interview{
			ID: "iv1", Specialization: hiring.SpecAnimator, CandidateRef: "c1",
			HiringManagerID: "a", ApplicationManagerID: "b",
		}))
		err := tx.CreateInterview(ctx, &hiring.Interview{
			ID: "iv2", Specialization: hiring.SpecAnimator, CandidateRef: "c1",
			HiringManagerID: "a", ApplicationManagerID: "b",
		})
		assert.True(t, errors.Is(err, hiring.ErrConflict), "got %v", err)
		return nil
	})
}

func TestTaskGuards(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var task hiring.Task
	inTx(t, s, func(tx hiring.Tx) error {
		require.NoError(t, tx.CreateInterview(ctx, &hiring.Interview{
			ID: "iv1", Specialization: hiring.SpecUIArtist, CandidateRef: "c1",
			HiringManagerID: "hm", ApplicationManagerID: "am",
		}))
		task = hiring.Task{
			InterviewID: "iv1",
			Name:        "mockup",
			HM:          hiring.TaskEvaluation{Role: hiring.RoleHiringManager, ReviewerID: "hm"},
			AM:          hiring.TaskEvaluation{Role: hiring.RoleApplicationManager, ReviewerID: "am"},
		}
		require.NoError(t, tx.CreateTask(ctx, &task))

		dup := hiring.Task{InterviewID: "iv1", Name: "mockup"}
		err := tx.CreateTask(ctx, &dup)
		assert.True(t, errors.Is(err, hiring.ErrConflict))
		return nil
	})

	inTx(t, s, func(tx hiring.Tx) error {
		got, err := tx.Task(ctx, "iv1", "mockup")
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.HM.TaskID)
		assert.Equal(t, "am", got.AM.ReviewerID)

		pass := true
		ev := got.HM
		ev.Pass = &pass
		ev.Report = "solid work"
		ok, err := tx.UpdateTaskEvaluation(ctx, ev)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.MarkTasksFinalized(ctx, "iv1")
		require.NoError(t, err)
		require.True(t, ok)

		// all task mutations are refused now
		ok, err = tx.SetTaskWork(ctx, task.ID, "late")
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = tx.UpdateTaskEvaluation(ctx, ev)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = tx.DeleteTask(ctx, task.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = tx.MarkTasksFinalized(ctx, "iv1")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})

	inTx(t, s, func(tx hiring.Tx) error {
		tasks, err := tx.Tasks(ctx, "iv1")
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "", tasks[0].Work)
		assert.True(t, tasks[0].HM.Complete())
		assert.False(t, tasks[0].AM.Complete())
		return nil
	})
}

func TestDeleteInterviewCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx hiring.Tx) error {
		require.NoError(t, tx.CreateInterview(ctx, &hiring.Interview{
			ID: "iv1", Specialization: hiring.SpecVFXArtist, CandidateRef: "c1",
			HiringManagerID: "hm", ApplicationManagerID: "am",
		}))
		task := hiring.Task{
			InterviewID: "iv1",
			Name:        "explosion",
			HM:          hiring.TaskEvaluation{Role: hiring.RoleHiringManager, ReviewerID: "hm"},
			AM:          hiring.TaskEvaluation{Role: hiring.RoleApplicationManager, ReviewerID: "am"},
		}
		require.NoError(t, tx.CreateTask(ctx, &task))
		return tx.DeleteInterview(ctx, "iv1")
	})

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM task_evaluations`).Scan(&n))
	assert.Zero(t, n)
}

func TestInterviewEvaluations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx hiring.Tx) error {
		require.NoError(t, tx.CreateInterview(ctx, &hiring.Interview{
			ID: "iv1", Specialization: hiring.SpecIconArtist, CandidateRef: "c1",
			HiringManagerID: "hm", ApplicationManagerID: "am",
		}))
		e1, err := tx.UpsertInterviewEvaluation(ctx, "iv1", hiring.RoleHiringManager, "hm")
		require.NoError(t, err)
		e2, err := tx.UpsertInterviewEvaluation(ctx, "iv1", hiring.RoleHiringManager, "hm")
		require.NoError(t, err)
		assert.Equal(t, e1.ID, e2.ID)

		pass, score := true, 8
		e1.Pass, e1.Score, e1.Report = &pass, &score, "great"
		ok, err := tx.UpdateInterviewEvaluation(ctx, e1)
		require.NoError(t, err)
		assert.True(t, ok)

		evals, err := tx.InterviewEvaluations(ctx, "iv1")
		require.NoError(t, err)
		require.NotNil(t, evals.HM)
		assert.Nil(t, evals.AM)
		assert.True(t, evals.HM.Complete())
		assert.Equal(t, 8, *evals.HM.Score)
		return nil
	})
}

func TestReferrals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx hiring.Tx) error {
		r := hiring.Referral{
			ReferrerID:      "alice",
			CandidateRef:    "carol",
			Specializations: []hiring.Specialization{hiring.SpecBuilder, hiring.SpecVFXArtist},
			Rating:          4,
		}
		require.NoError(t, tx.CreateReferral(ctx, &r))
		assert.NotZero(t, r.ID)

		dup := r
		assert.True(t, errors.Is(tx.CreateReferral(ctx, &dup), hiring.ErrConflict))

		got, err := tx.Referral(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, r.Specializations, got.Specializations)
		assert.True(t, got.Has(hiring.SpecVFXArtist))

		require.NoError(t, tx.DeleteReferral(ctx, "carol"))
		assert.True(t, errors.Is(tx.DeleteReferral(ctx, "carol"), hiring.ErrNotFound))
		return nil
	})
}

func TestInterviewTransitions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	closed := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	inTx(t, s, func(tx hiring.Tx) error {
		require.NoError(t, tx.CreateInterview(ctx, &hiring.Interview{
			ID: "iv1", Specialization: hiring.SpecAnimator, CandidateRef: "c1",
			HiringManagerID: "hm", ApplicationManagerID: "am",
		}))

		err := tx.SetThread(ctx, "missing", "-100:1")
		assert.True(t, errors.Is(err, hiring.ErrNotFound), "got %v", err)
		require.NoError(t, tx.SetThread(ctx, "iv1", "-100:7"))

		// out of order transitions change nothing
		ok, err := tx.MarkComplete(ctx, "iv1", "early", closed)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = tx.SetHireDecision(ctx, "iv1", true)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = tx.MarkTasksFinalized(ctx, "iv1")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.MarkComplete(ctx, "iv1", "summary", closed)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.MarkComplete(ctx, "iv1", "again", closed)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = tx.MarkTasksFinalized(ctx, "iv1")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = tx.SetHireDecision(ctx, "iv1", false)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.SetHireDecision(ctx, "iv1", true)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	})

	inTx(t, s, func(tx hiring.Tx) error {
		iv, err := tx.Interview(ctx, "iv1")
		require.NoError(t, err)
		assert.Equal(t, "-100:7", iv.ThreadRef)
		assert.True(t, iv.TasksFinalized)
		assert.True(t, iv.Complete)
		assert.Equal(t, "summary", iv.Summary)
		require.NotNil(t, iv.HireDecision)
		assert.True(t, *iv.HireDecision)
		require.NotNil(t, iv.ClosedAt)
		assert.True(t, closed.Equal(*iv.ClosedAt))
		return nil
	})
}
