package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/sirupsen/logrus"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

// Source is read side of hiring service used by the pages
type Source interface {
	PhaseCounts(ctx context.Context) (map[hiring.Phase]int, error)
	ReviewerSummary(ctx context.Context, reviewerID string) ([]hiring.PreferenceSummary, error)
}

type Handlers struct {
	Source Source
	Log    logrus.FieldLogger
}

type phaseCount struct {
	Phase string `json:"phase"`
	Count int    `json:"count"`
}

type preferenceRow struct {
	Specialization  string `json:"specialization"`
	QueueMax        int    `json:"queue_max"`
	Authority       string `json:"authority"`
	Willing         bool   `json:"willing_to_interview"`
	OpenInterviews  int    `json:"open_interviews"`
	TotalInterviews int    `json:"total_interviews"`
}

func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Source.PhaseCounts(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("can not count interviews")
		fmt.Fprint(w, "<p>status unavailable</p>")
		return
	}

	fmt.Fprint(w, "<table border=1><tr><td>Phase</td><td>Interviews</td></tr>")
	for _, p := range hiring.Phases {
		fmt.Fprintf(w, "<tr><td>%s</td><td>%d</td></tr>", p, counts[p])
	}
	fmt.Fprint(w, "</table>")
	fmt.Fprint(w, `<ul><li><a href="/status">/status</a></li><li><a href="/metrics">/metrics</a></li></ul>`)
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Source.PhaseCounts(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("can not count interviews")
		http.Error(w, "can not count interviews", http.StatusInternalServerError)
		return
	}

	out := make([]phaseCount, 0, len(hiring.Phases))
	for _, p := range hiring.Phases {
		out = append(out, phaseCount{Phase: p.String(), Count: counts[p]})
	}
	h.encode(w, out)
}

func (h *Handlers) Reviewer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rows, err := h.Source.ReviewerSummary(r.Context(), id)
	if err != nil {
		if hiring.KindOf(err) == hiring.KindCredentials {
			http.Error(w, "reviewer not found", http.StatusNotFound)
			return
		}
		h.Log.WithError(err).WithField("reviewer", id).Error("can not get reviewer summary")
		http.Error(w, "can not get reviewer summary", http.StatusInternalServerError)
		return
	}

	out := make([]preferenceRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, preferenceRow{
			Specialization:  string(row.Specialization),
			QueueMax:        row.QueueMax,
			Authority:       row.MaxAuthority.String(),
			Willing:         row.WillingToInterview,
			OpenInterviews:  row.OpenInterviews,
			TotalInterviews: row.TotalInterviews,
		})
	}
	h.encode(w, out)
}

func (h *Handlers) encode(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.WithError(err).Warn("can not encode response")
	}
}
