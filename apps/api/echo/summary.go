package echoapi

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/core/academic"
	"github.com/trezcool/kumbukumbu/core/assist"
	"github.com/trezcool/kumbukumbu/core/behavior"
	"github.com/trezcool/kumbukumbu/core/student"
)

type summaryApi struct {
	students     *student.Service
	categories   *behavior.CategoryService
	behaviorLogs *behavior.LogService
	academicLogs *academic.Service
	completer    assist.ChatCompleter
}

func registerSummaryAPI(g *echo.Group, api summaryApi) {
	g.POST("/"+student.Kind+"/:id/summary", api.summarize)
}

type SummaryResponse struct {
	StudentID string `json:"student_id"`
	Summary   string `json:"summary"`
}

// summarize asks the completer for a summary of every observation recorded about a student.
func (api *summaryApi) summarize(ctx echo.Context) error {
	scope, err := contextScope(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()

	stud, err := api.students.GetOne(rctx, ctx.Param("id"), scope)
	if err != nil {
		return errors.Wrap(err, "retrieving student")
	}
	nested := scope.WithParent(stud.ID)

	cats, err := api.categories.GetMany(rctx, scope)
	if err != nil {
		return errors.Wrap(err, "querying behavior categories")
	}
	catNames := make(map[string]string, len(cats))
	for _, c := range cats {
		catNames[c.ID] = c.Name
	}

	blogs, err := api.behaviorLogs.GetMany(rctx, nested)
	if err != nil {
		return errors.Wrap(err, "querying behavior logs")
	}
	alogs, err := api.academicLogs.GetMany(rctx, nested)
	if err != nil {
		return errors.Wrap(err, "querying academic logs")
	}

	entries := make([]assist.Entry, 0, len(blogs)+len(alogs))
	for _, l := range blogs {
		entries = append(entries, assist.Entry{Kind: "behavior", Title: catNames[l.CategoryID], Note: l.Note, OccurredAt: l.OccurredAt})
	}
	for _, l := range alogs {
		entries = append(entries, assist.Entry{Kind: "academic", Title: l.Subject, Note: l.Note, OccurredAt: l.OccurredAt})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].OccurredAt.Before(entries[j].OccurredAt) })

	text, err := api.completer.Complete(rctx, assist.SummaryMessages(stud.Name, entries), map[string]string{
		"organization_id": scope.OrganizationID,
		"student_id":      stud.ID,
	})
	if err != nil {
		return errors.Wrap(err, "summarizing student")
	}
	return ctx.JSON(http.StatusOK, SummaryResponse{StudentID: stud.ID, Summary: text})
}
