package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/sirupsen/logrus"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

// Router turns chat commands into hiring service calls
type Router struct {
	svc       *hiring.Service
	transport *Transport
	log       logrus.FieldLogger
	commands  map[string]command
}

type request struct {
	caller string
	chat   int64
	msg    *tgbotapi.Message
	args   []string
	// thread is set when the command replies to an interview thread
	thread string
}

type command struct {
	usage  string
	handle func(ctx context.Context, req request) (string, error)
}

func NewRouter(svc *hiring.Service, transport *Transport, log logrus.FieldLogger) *Router {
	r := &Router{svc: svc, transport: transport, log: log}
	r.commands = map[string]command{
		"help":        {"", r.help},
		"register":    {"[display name]", r.register},
		"configure":   {"<specialization> <queue max 1-5> <willing y/n>", r.configure},
		"unconfigure": {"<specialization>", r.unconfigure},
		"grant":       {"<user id> <specialization> <HM|AM|NONE>", r.grant},
		"revoke":      {"<user id> <specialization>", r.revoke},
		"summary":     {"", r.summary},
		"refer":       {"<candidate id> <rating 1-5> <spec,spec> [notes]", r.refer},
		"referrals":   {"", r.referrals},
		"unrefer":     {"<candidate id>", r.unrefer},
		"interview":   {"<candidate id> <specialization>", r.interview},
		"task":        {"[interview] <name>", r.task},
		"work":        {"[interview] <name> <text>", r.work},
		"deltask":     {"[interview] <name>", r.deleteTask},
		"evaltask":    {"[interview] <name>", r.evaluateTask},
		"finalize":    {"[interview]", r.finalize},
		"evaluate":    {"[interview]", r.evaluate},
		"close":       {"[interview]", r.closeInterview},
		"decide":      {"<interview> <hire|reject>", r.decide},
		"status":      {"[interview]", r.status},
		"showwork":    {"[interview] <name>", r.showWork},
		"report":      {"[interview]", r.report},
	}
	return r
}

// Handle processes single update. Commands run in their own goroutine
// because interactive flows wait for answers that arrive as later updates.
func (r *Router) Handle(ctx context.Context, update tgbotapi.Update) {
	if cq := update.CallbackQuery; cq != nil {
		text := "Got it!"
		if err := r.transport.Answer(cq.From.ID, cq.Data); err != nil {
			r.log.WithError(err).WithField("user", cq.From.ID).Debug("callback rejected")
			text = "This question is no longer open."
		}
		if _, err := r.transport.api.AnswerCallbackQuery(tgbotapi.NewCallback(cq.ID, text)); err != nil {
			r.log.WithError(err).Warn("can not answer callback")
		}
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if !msg.IsCommand() {
		if msg.Chat.IsPrivate() || msg.ReplyToMessage != nil {
			if _, err := r.transport.Reply(msg.From.ID, msg.Text); err != nil {
				r.log.WithError(err).WithField("user", msg.From.ID).Debug("reply rejected")
			}
		}
		return
	}

	go r.dispatch(ctx, msg)
}

func (r *Router) dispatch(ctx context.Context, msg *tgbotapi.Message) {
	name := msg.Command()
	cmd, ok := r.commands[name]
	if !ok {
		r.reply(msg, "Unknown command, try /help")
		return
	}

	req := request{
		caller: strconv.Itoa(msg.From.ID),
		chat:   msg.Chat.ID,
		msg:    msg,
		args:   strings.Fields(msg.CommandArguments()),
	}
	if msg.ReplyToMessage != nil {
		req.thread = ThreadRef{ChatID: msg.Chat.ID, MessageID: msg.ReplyToMessage.MessageID}.String()
	}

	out, err := cmd.handle(ctx, req)
	if err != nil {
		if hiring.KindOf(err) == hiring.KindArgument && cmd.usage != "" {
			r.reply(msg, fmt.Sprintf("%s\nUsage: /%s %s", hiring.UserMessage(err), name, cmd.usage))
			return
		}
		r.reply(msg, hiring.UserMessage(err))
		return
	}
	if out != "" {
		r.reply(msg, out)
	}
}

func (r *Router) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := r.transport.send(out); err != nil {
		r.log.WithError(err).WithField("chat", msg.Chat.ID).Warn("can not reply")
	}
}

func usageErr(format string, args ...interface{}) error {
	return hiring.Errorf(hiring.KindArgument, format, args...)
}

// interviewID resolves the addressed interview: the thread the command replies
// to, otherwise the first argument. Remaining arguments are returned.
func (r *Router) interviewID(ctx context.Context, req request) (string, []string, error) {
	if req.thread != "" {
		iv, err := r.svc.InterviewByThread(ctx, req.thread)
		if err == nil {
			return iv.ID, req.args, nil
		}
	}
	if len(req.args) == 0 {
		return "", nil, usageErr("Reply to an interview thread or pass the interview id!")
	}
	return req.args[0], req.args[1:], nil
}

func (r *Router) help(ctx context.Context, req request) (string, error) {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "/%s %s\n", name, r.commands[name].usage)
	}
	return b.String(), nil
}

func (r *Router) register(ctx context.Context, req request) (string, error) {
	name := strings.Join(req.args, " ")
	if name == "" {
		name = req.msg.From.UserName
	}
	if err := r.svc.RegisterReviewer(ctx, req.caller, name); err != nil {
		return "", err
	}
	return "You are registered as a reviewer.", nil
}

func (r *Router) configure(ctx context.Context, req request) (string, error) {
	if len(req.args) != 3 {
		return "", usageErr("Wrong number of arguments!")
	}
	spec, err := hiring.ParseSpecialization(req.args[0])
	if err != nil {
		return "", err
	}
	queueMax, err := strconv.Atoi(req.args[1])
	if err != nil {
		return "", usageErr("Queue max must be a number!")
	}
	willing, err := hiring.ParseApproval(req.args[2])
	if err != nil || willing == nil {
		return "", usageErr("Willing to interview must be y or n!")
	}
	pref, err := r.svc.ConfigurePreference(ctx, req.caller, spec, queueMax, *willing)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s configured: queue max %d, willing to interview %t, authority %s.",
		spec.English(), pref.QueueMax, pref.WillingToInterview, pref.MaxAuthority), nil
}

func (r *Router) unconfigure(ctx context.Context, req request) (string, error) {
	if len(req.args) != 1 {
		return "", usageErr("Wrong number of arguments!")
	}
	spec, err := hiring.ParseSpecialization(req.args[0])
	if err != nil {
		return "", err
	}
	if err := r.svc.RemovePreference(ctx, req.caller, spec); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s removed.", spec.English()), nil
}

func (r *Router) grant(ctx context.Context, req request) (string, error) {
	if len(req.args) != 3 {
		return "", usageErr("Wrong number of arguments!")
	}
	spec, err := hiring.ParseSpecialization(req.args[1])
	if err != nil {
		return "", err
	}
	authority, err := hiring.ParseAuthority(req.args[2])
	if err != nil {
		return "", err
	}
	if err := r.svc.GrantAuthority(ctx, req.caller, req.args[0], spec, authority); err != nil {
		return "", err
	}
	return "Authority updated.", nil
}

func (r *Router) revoke(ctx context.Context, req request) (string, error) {
	if len(req.args) != 2 {
		return "", usageErr("Wrong number of arguments!")
	}
	spec, err := hiring.ParseSpecialization(req.args[1])
	if err != nil {
		return "", err
	}
	if err := r.svc.RevokeAuthority(ctx, req.caller, req.args[0], spec); err != nil {
		return "", err
	}
	return "Authority revoked.", nil
}

func (r *Router) summary(ctx context.Context, req request) (string, error) {
	rows, err := r.svc.ReviewerSummary(ctx, req.caller)
	if err != nil {
		return "", err
	}
	return renderSummary(rows), nil
}

func renderSummary(rows []hiring.PreferenceSummary) string {
	if len(rows) == 0 {
		return "No roles configured."
	}
	var b strings.Builder
	b.WriteString("Role | Queue | Authority | Interviews | Open/Total\n")
	for _, row := range rows {
		willing := "no"
		if row.WillingToInterview {
			willing = "yes"
		}
		fmt.Fprintf(&b, "%s | %d | %s | %s | %d/%d\n", row.Specialization.English(), row.QueueMax,
			row.MaxAuthority, willing, row.OpenInterviews, row.TotalInterviews)
	}
	return b.String()
}

// parseReferral reads "<candidate> <rating> <spec,spec> [notes...]"
func parseReferral(referrer string, args []string) (hiring.Referral, error) {
	if len(args) < 3 {
		return hiring.Referral{}, usageErr("Wrong number of arguments!")
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return hiring.Referral{}, usageErr("Rating must be a number!")
	}
	ref := hiring.Referral{
		ReferrerID:   referrer,
		CandidateRef: args[0],
		Rating:       rating,
		Notes:        strings.Join(args[3:], " "),
	}
	for _, name := range strings.Split(args[2], ",") {
		spec, err := hiring.ParseSpecialization(name)
		if err != nil {
			return hiring.Referral{}, err
		}
		if !ref.Has(spec) {
			ref.Specializations = append(ref.Specializations, spec)
		}
	}
	return ref, nil
}

func (r *Router) refer(ctx context.Context, req request) (string, error) {
	ref, err := parseReferral(req.caller, req.args)
	if err != nil {
		return "", err
	}
	if req.msg.ReplyToMessage != nil && req.msg.ReplyToMessage.From != nil {
		ref.CandidateName = req.msg.ReplyToMessage.From.FirstName
	}
	if _, err := r.svc.Refer(ctx, ref); err != nil {
		return "", err
	}
	return "Referral recorded.", nil
}

func (r *Router) referrals(ctx context.Context, req request) (string, error) {
	refs, err := r.svc.Referrals(ctx)
	if err != nil {
		return "", err
	}
	if len(refs) == 0 {
		return "No referrals.", nil
	}
	var b strings.Builder
	for _, ref := range refs {
		specs := make([]string, len(ref.Specializations))
		for i, s := range ref.Specializations {
			specs[i] = s.English()
		}
		fmt.Fprintf(&b, "%s by %s, rating %d: %s\n", ref.CandidateRef, ref.ReferrerID, ref.Rating, strings.Join(specs, ", "))
	}
	return b.String(), nil
}

func (r *Router) unrefer(ctx context.Context, req request) (string, error) {
	if len(req.args) != 1 {
		return "", usageErr("Wrong number of arguments!")
	}
	if err := r.svc.RemoveReferral(ctx, req.caller, req.args[0]); err != nil {
		return "", err
	}
	return "Referral removed.", nil
}

func (r *Router) interview(ctx context.Context, req request) (string, error) {
	if len(req.args) != 2 {
		return "", usageErr("Wrong number of arguments!")
	}
	spec, err := hiring.ParseSpecialization(req.args[1])
	if err != nil {
		return "", err
	}
	iv, err := r.svc.StartInterview(ctx, req.caller, req.args[0], spec)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Interview %s started.", iv.ID), nil
}

func (r *Router) taskArgs(ctx context.Context, req request, n int) (string, []string, error) {
	id, rest, err := r.interviewID(ctx, req)
	if err != nil {
		return "", nil, err
	}
	if len(rest) < n {
		return "", nil, usageErr("Wrong number of arguments!")
	}
	return id, rest, nil
}

func (r *Router) task(ctx context.Context, req request) (string, error) {
	id, rest, err := r.taskArgs(ctx, req, 1)
	if err != nil {
		return "", err
	}
	task, roles, err := r.svc.CreateOrUpdateTask(ctx, req.caller, id, rest[0])
	if err != nil {
		return "", err
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.Short()
	}
	return fmt.Sprintf("Task %q is open for you as %s. Use /work and /evaltask.", task.Name, strings.Join(names, " and ")), nil
}

func (r *Router) work(ctx context.Context, req request) (string, error) {
	id, rest, err := r.taskArgs(ctx, req, 2)
	if err != nil {
		return "", err
	}
	if err := r.svc.SetWork(ctx, req.caller, id, rest[0], strings.Join(rest[1:], " ")); err != nil {
		return "", err
	}
	return "Work saved.", nil
}

func (r *Router) deleteTask(ctx context.Context, req request) (string, error) {
	id, rest, err := r.taskArgs(ctx, req, 1)
	if err != nil {
		return "", err
	}
	if err := r.svc.DeleteTask(ctx, req.caller, id, rest[0]); err != nil {
		return "", err
	}
	return "Task deleted.", nil
}

func (r *Router) evaluateTask(ctx context.Context, req request) (string, error) {
	id, rest, err := r.taskArgs(ctx, req, 1)
	if err != nil {
		return "", err
	}
	if err := r.svc.EvaluateTask(ctx, req.caller, id, rest[0]); err != nil {
		if hiring.IsTimeout(err) {
			// the notice was already sent
			return "", nil
		}
		return "", err
	}
	return "Task evaluation saved.", nil
}

func (r *Router) finalize(ctx context.Context, req request) (string, error) {
	id, _, err := r.interviewID(ctx, req)
	if err != nil {
		return "", err
	}
	if err := r.svc.FinalizeTasks(ctx, req.caller, id); err != nil {
		return "", err
	}
	return "Tasks finalized.", nil
}

func (r *Router) evaluate(ctx context.Context, req request) (string, error) {
	id, _, err := r.interviewID(ctx, req)
	if err != nil {
		return "", err
	}
	if err := r.svc.EvaluateInterview(ctx, req.caller, id); err != nil {
		if hiring.IsTimeout(err) {
			return "", nil
		}
		return "", err
	}
	return "Interview evaluation saved.", nil
}

func (r *Router) closeInterview(ctx context.Context, req request) (string, error) {
	id, _, err := r.interviewID(ctx, req)
	if err != nil {
		return "", err
	}
	if _, err := r.svc.Close(ctx, req.caller, id); err != nil {
		return "", err
	}
	return "Interview closed, the administrator has been notified.", nil
}

func (r *Router) decide(ctx context.Context, req request) (string, error) {
	if len(req.args) != 2 {
		return "", usageErr("Wrong number of arguments!")
	}
	var hire bool
	switch strings.ToLower(req.args[1]) {
	case "hire":
		hire = true
	case "reject":
	default:
		return "", usageErr("Decision must be hire or reject!")
	}
	applied, err := r.svc.DecideHire(ctx, req.caller, req.args[0], hire)
	if err != nil {
		if hiring.IsTimeout(err) {
			return "", nil
		}
		return "", err
	}
	if !applied {
		return "Nothing was changed.", nil
	}
	return "Decision recorded.", nil
}

func (r *Router) status(ctx context.Context, req request) (string, error) {
	id, _, err := r.interviewID(ctx, req)
	if err != nil {
		return "", err
	}
	st, err := r.svc.Status(ctx, req.caller, id)
	if err != nil {
		return "", err
	}
	return renderStatus(st), nil
}

func renderStatus(st hiring.InterviewStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interview %s (%s): %s\n\n", st.Interview.ID, st.Interview.Specialization.English(), st.Phase)
	b.WriteString(hiring.RenderTaskTable(st.Tasks))
	fmt.Fprintf(&b, "\nHiring manager evaluation complete: %t\n", st.Completeness.HM)
	if !st.Interview.DualRole() {
		fmt.Fprintf(&b, "Application manager evaluation complete: %t\n", st.Completeness.AM)
	}
	return b.String()
}

func (r *Router) showWork(ctx context.Context, req request) (string, error) {
	id, rest, err := r.taskArgs(ctx, req, 1)
	if err != nil {
		return "", err
	}
	work, err := r.svc.ShowWork(ctx, req.caller, id, rest[0])
	if err != nil {
		return "", err
	}
	if work == "" {
		return "No work submitted yet.", nil
	}
	return work, nil
}

func (r *Router) report(ctx context.Context, req request) (string, error) {
	id, _, err := r.interviewID(ctx, req)
	if err != nil {
		return "", err
	}
	return r.svc.Report(ctx, req.caller, id)
}
