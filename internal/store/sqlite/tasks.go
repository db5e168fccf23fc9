package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

// task mutations only touch rows of interviews whose tasks are not finalized
const openTasks = `SELECT t.id FROM tasks t JOIN interviews i ON i.id = t.interview_id WHERE i.tasks_finalized = 0`

func (t *tx) Tasks(ctx context.Context, interviewID string) ([]hiring.Task, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, interview_id, name, work FROM tasks
		WHERE interview_id = ? ORDER BY id`, interviewID)
	if err != nil {
		return nil, translate(err, "select tasks")
	}
	var tasks []hiring.Task
	for rows.Next() {
		var task hiring.Task
		if err := rows.Scan(&task.ID, &task.InterviewID, &task.Name, &task.Work); err != nil {
			rows.Close()
			return nil, translate(err, "scan task")
		}
		tasks = append(tasks, task)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, translate(err, "select tasks")
	}

	evals, err := t.taskEvaluations(ctx, `SELECT e.id, e.task_id, e.role, e.reviewer_id, e.pass, e.report
		FROM task_evaluations e JOIN tasks t ON t.id = e.task_id WHERE t.interview_id = ?`, interviewID)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		attach(&tasks[i], evals)
	}
	return tasks, nil
}

func (t *tx) Task(ctx context.Context, interviewID, name string) (hiring.Task, error) {
	var task hiring.Task
	row := t.tx.QueryRowContext(ctx, `SELECT id, interview_id, name, work FROM tasks
		WHERE interview_id = ? AND name = ?`, interviewID, name)
	if err := row.Scan(&task.ID, &task.InterviewID, &task.Name, &task.Work); err != nil {
		return hiring.Task{}, translate(err, "select task")
	}

	evals, err := t.taskEvaluations(ctx, `SELECT id, task_id, role, reviewer_id, pass, report
		FROM task_evaluations WHERE task_id = ?`, task.ID)
	if err != nil {
		return hiring.Task{}, err
	}
	attach(&task, evals)
	return task, nil
}

func attach(task *hiring.Task, evals map[int64][]hiring.TaskEvaluation) {
	for _, e := range evals[task.ID] {
		switch e.Role {
		case hiring.RoleHiringManager:
			task.HM = e
		case hiring.RoleApplicationManager:
			task.AM = e
		}
	}
}

func (t *tx) taskEvaluations(ctx context.Context, query string, args ...interface{}) (map[int64][]hiring.TaskEvaluation, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "select task evaluations")
	}
	defer rows.Close()

	out := map[int64][]hiring.TaskEvaluation{}
	for rows.Next() {
		var (
			e    hiring.TaskEvaluation
			pass sql.NullBool
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Role, &e.ReviewerID, &pass, &e.Report); err != nil {
			return nil, translate(err, "scan task evaluation")
		}
		e.Pass = nullBool(pass)
		out[e.TaskID] = append(out[e.TaskID], e)
	}
	return out, translate(rows.Err(), "select task evaluations")
}

func (t *tx) CreateTask(ctx context.Context, task *hiring.Task) error {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO tasks (interview_id, name, work) VALUES (?, ?, ?)`,
		task.InterviewID, task.Name, task.Work)
	if err != nil {
		return translate(err, "insert task")
	}
	task.ID, err = res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "insert task")
	}

	for _, e := range []*hiring.TaskEvaluation{&task.HM, &task.AM} {
		res, err := t.tx.ExecContext(ctx, `INSERT INTO task_evaluations (task_id, role, reviewer_id, pass, report)
			VALUES (?, ?, ?, ?, ?)`, task.ID, int(e.Role), e.ReviewerID, boolArg(e.Pass), e.Report)
		if err != nil {
			return translate(err, "insert task evaluation")
		}
		e.ID, err = res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "insert task evaluation")
		}
		e.TaskID = task.ID
	}
	return nil
}

func (t *tx) SetTaskWork(ctx context.Context, taskID int64, work string) (bool, error) {
	return t.exec(ctx, "set task work", `UPDATE tasks SET work = ?
		WHERE id = ? AND id IN (`+openTasks+`)`, work, taskID)
}

func (t *tx) DeleteTask(ctx context.Context, taskID int64) (bool, error) {
	return t.exec(ctx, "delete task", `DELETE FROM tasks
		WHERE id = ? AND id IN (`+openTasks+`)`, taskID)
}

func (t *tx) UpdateTaskEvaluation(ctx context.Context, e hiring.TaskEvaluation) (bool, error) {
	return t.exec(ctx, "update task evaluation", `UPDATE task_evaluations SET pass = ?, report = ?
		WHERE id = ? AND task_id = ? AND task_id IN (`+openTasks+`)`, boolArg(e.Pass), e.Report, e.ID, e.TaskID)
}

func (t *tx) UpsertInterviewEvaluation(ctx context.Context, interviewID string, role hiring.Role, reviewerID string) (hiring.InterviewEvaluation, error) {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO interview_evaluations (interview_id, role, reviewer_id)
		VALUES (?, ?, ?) ON CONFLICT (interview_id, role) DO NOTHING`, interviewID, int(role), reviewerID)
	if err != nil {
		return hiring.InterviewEvaluation{}, translate(err, "upsert interview evaluation")
	}

	row := t.tx.QueryRowContext(ctx, `SELECT `+interviewEvaluationColumns+` FROM interview_evaluations
		WHERE interview_id = ? AND role = ?`, interviewID, int(role))
	e, err := scanInterviewEvaluation(row)
	return e, translate(err, "select interview evaluation")
}

const interviewEvaluationColumns = `id, interview_id, role, reviewer_id, pass, score, report`

func scanInterviewEvaluation(s scanner) (hiring.InterviewEvaluation, error) {
	var (
		e     hiring.InterviewEvaluation
		pass  sql.NullBool
		score sql.NullInt64
	)
	if err := s.Scan(&e.ID, &e.InterviewID, &e.Role, &e.ReviewerID, &pass, &score, &e.Report); err != nil {
		return hiring.InterviewEvaluation{}, err
	}
	e.Pass = nullBool(pass)
	e.Score = nullInt(score)
	return e, nil
}

func (t *tx) InterviewEvaluations(ctx context.Context, interviewID string) (hiring.Evaluations, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+interviewEvaluationColumns+` FROM interview_evaluations
		WHERE interview_id = ?`, interviewID)
	if err != nil {
		return hiring.Evaluations{}, translate(err, "select interview evaluations")
	}
	defer rows.Close()

	var out hiring.Evaluations
	for rows.Next() {
		e, err := scanInterviewEvaluation(rows)
		if err != nil {
			return hiring.Evaluations{}, translate(err, "scan interview evaluation")
		}
		switch e.Role {
		case hiring.RoleHiringManager:
			out.HM = &e
		case hiring.RoleApplicationManager:
			out.AM = &e
		}
	}
	return out, translate(rows.Err(), "select interview evaluations")
}

func (t *tx) UpdateInterviewEvaluation(ctx context.Context, e hiring.InterviewEvaluation) (bool, error) {
	return t.exec(ctx, "update interview evaluation", `UPDATE interview_evaluations SET pass = ?, score = ?, report = ?
		WHERE id = ? AND interview_id IN (SELECT id FROM interviews WHERE complete = 0)`,
		boolArg(e.Pass), intArg(e.Score), e.Report, e.ID)
}
