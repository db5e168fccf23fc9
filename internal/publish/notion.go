package publish

import (
	"context"
	"unicode/utf8"

	gnt "github.com/dstotijn/go-notion"
	"github.com/pkg/errors"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

// notion rejects rich text content longer than this
const maxRichText = 2000

// Pages is the part of notion client used by NotionSink
type Pages interface {
	CreatePage(ctx context.Context, params gnt.CreatePageParams) (gnt.Page, error)
}

// NotionSink adds one row per closed interview to a notion database
type NotionSink struct {
	api        Pages
	databaseID string
}

func NewNotionSink(token, databaseID string) *NotionSink {
	return NewNotionSinkWithAPI(gnt.NewClient(token), databaseID)
}

func NewNotionSinkWithAPI(api Pages, databaseID string) *NotionSink {
	return &NotionSink{api: api, databaseID: databaseID}
}

func richText(s string) []gnt.RichText {
	if s == "" {
		return nil
	}
	if utf8.RuneCountInString(s) > maxRichText {
		s = string([]rune(s)[:maxRichText-1]) + "…"
	}
	return []gnt.RichText{{Text: &gnt.Text{Content: s}}}
}

func reportProperties(r hiring.Report) gnt.DatabasePageProperties {
	candidate := r.CandidateName
	if candidate == "" {
		candidate = r.CandidateRef
	}

	props := gnt.DatabasePageProperties{
		"Candidate": gnt.DatabasePageProperty{
			Title: richText(candidate),
		},
		"Interview": gnt.DatabasePageProperty{
			RichText: richText(r.InterviewID),
		},
		"Role": gnt.DatabasePageProperty{
			Select: &gnt.SelectOptions{Name: r.Specialization.English()},
		},
		"Closed": gnt.DatabasePageProperty{
			Date: &gnt.Date{Start: gnt.NewDateTime(r.ClosedAt, true)},
		},
		"Report": gnt.DatabasePageProperty{
			RichText: richText(r.Markdown),
		},
	}

	if r.HireDecision != nil {
		decision := "Rejected"
		if *r.HireDecision {
			decision = "Hired"
		}
		props["Decision"] = gnt.DatabasePageProperty{
			Select: &gnt.SelectOptions{Name: decision},
		}
	}

	return props
}

func (s *NotionSink) PublishReport(ctx context.Context, r hiring.Report) error {
	props := reportProperties(r)
	_, err := s.api.CreatePage(ctx, gnt.CreatePageParams{
		ParentType:             gnt.ParentTypeDatabase,
		ParentID:               s.databaseID,
		DatabasePageProperties: &props,
	})
	return errors.Wrapf(err, "can not create notion page for interview %s", r.InterviewID)
}
