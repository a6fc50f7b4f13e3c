package http

import (
	"context"
	"encoding/json"
	"fmt"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"deckforge/app/internal/db"
	"deckforge/app/internal/http/templates"
	"deckforge/app/internal/library"
)

const (
	htmlContentType      = "text/html; charset=utf-8"
	defaultListLimit     = 20
	errorFallbackMessage = "We couldn't process your request right now."
)

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type createPresentationInput struct {
	Body struct {
		Title   string `json:"title" minLength:"1" maxLength:"255" doc:"Presentation title"`
		Message string `json:"message" minLength:"1" doc:"What the presentation should convey"`
	}
}

type createPresentationOutput struct {
	Status   int
	Location string `header:"Location"`
	Body     struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		StatusURL string `json:"status_url"`
		ViewURL   string `json:"view_url"`
	}
}

type presentationInput struct {
	ID string `path:"id"`
}

type listPresentationsInput struct {
	Limit int `query:"limit" default:"20" minimum:"1" maximum:"100"`
}

type usageView struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

type statusEventView struct {
	Phase   string    `json:"phase"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type debugFileView struct {
	Filename string    `json:"filename"`
	Context  string    `json:"context"`
	Error    string    `json:"error"`
	Size     int       `json:"size"`
	Time     time.Time `json:"time"`
}

// PresentationSummary stays exported; huma skips unexported embedded structs.
type PresentationSummary struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Status            string     `json:"status"`
	StatusDescription string     `json:"status_description"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

type presentationView struct {
	PresentationSummary
	Message    string            `json:"message"`
	Error      string            `json:"error,omitempty"`
	Slides     []map[string]any  `json:"presentation,omitempty"`
	Plan       map[string]any    `json:"content_plan,omitempty"`
	Research   []map[string]any  `json:"researched_content,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	Usage      usageView         `json:"usage"`
	Events     []statusEventView `json:"status_history"`
	DebugFiles []debugFileView   `json:"debug_files"`
}

type presentationOutput struct {
	Body presentationView
}

type listPresentationsOutput struct {
	Body struct {
		Presentations []PresentationSummary `json:"presentations"`
	}
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Library  string `json:"library"`
	}
}

func (s *Server) registerCreateRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-presentation",
		Method:        stdhttp.MethodPost,
		Path:          "/api/presentations",
		Summary:       "Start generating a presentation",
		DefaultStatus: stdhttp.StatusAccepted,
		Errors:        []int{stdhttp.StatusBadRequest, stdhttp.StatusTooManyRequests, stdhttp.StatusInternalServerError},
	}, s.createPresentationHandler)
}

func (s *Server) registerListRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-presentations",
		Method:      stdhttp.MethodGet,
		Path:        "/api/presentations",
		Summary:     "List recent presentations",
	}, s.listPresentationsHandler)
}

func (s *Server) registerGetRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-presentation",
		Method:      stdhttp.MethodGet,
		Path:        "/api/presentations/{id}",
		Summary:     "Fetch a presentation with its status history",
		Errors:      []int{stdhttp.StatusNotFound, stdhttp.StatusInternalServerError},
	}, s.getPresentationHandler)
}

func (s *Server) registerViewerRoute() {
	huma.Get(s.api, "/presentations/{id}", s.viewerHandler, htmlOperation(
		"Render a presentation",
		stdhttp.StatusNotFound,
		stdhttp.StatusInternalServerError,
	))
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) createPresentationHandler(ctx context.Context, input *createPresentationInput) (*createPresentationOutput, error) {
	title := strings.TrimSpace(input.Body.Title)
	message := strings.TrimSpace(input.Body.Message)
	if title == "" || message == "" {
		return nil, huma.Error400BadRequest("title and message must not be blank")
	}

	presentation, err := s.library.Start(ctx, title, message)
	if eris.Is(err, library.ErrShuttingDown) {
		return nil, huma.Error503ServiceUnavailable("server is shutting down, try again shortly")
	}
	if err != nil {
		s.recordError(ctx, err, "starting presentation", logrus.Fields{"title": title})
		return nil, huma.Error500InternalServerError(errorFallbackMessage)
	}

	resp := &createPresentationOutput{Status: stdhttp.StatusAccepted}
	resp.Location = "/api/presentations/" + presentation.ID
	resp.Body.ID = presentation.ID
	resp.Body.Status = presentation.Status
	resp.Body.StatusURL = resp.Location
	resp.Body.ViewURL = "/presentations/" + presentation.ID
	return resp, nil
}

func (s *Server) listPresentationsHandler(ctx context.Context, input *listPresentationsInput) (*listPresentationsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	presentations, err := s.library.List(ctx, limit)
	if err != nil {
		s.recordError(ctx, err, "listing presentations", nil)
		return nil, huma.Error500InternalServerError(errorFallbackMessage)
	}

	resp := &listPresentationsOutput{}
	resp.Body.Presentations = make([]PresentationSummary, 0, len(presentations))
	for i := range presentations {
		resp.Body.Presentations = append(resp.Body.Presentations, summarize(&presentations[i]))
	}
	return resp, nil
}

func (s *Server) getPresentationHandler(ctx context.Context, input *presentationInput) (*presentationOutput, error) {
	id := strings.TrimSpace(input.ID)
	presentation, err := s.library.Get(ctx, id)
	if err != nil {
		s.recordError(ctx, err, "fetching presentation", logrus.Fields{"presentation_id": id})
		return nil, huma.Error500InternalServerError(errorFallbackMessage)
	}
	if presentation == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("presentation %s not found", id))
	}

	view, err := s.presentationView(presentation)
	if err != nil {
		s.recordError(ctx, err, "decoding stored presentation", logrus.Fields{"presentation_id": id})
		return nil, huma.Error500InternalServerError(errorFallbackMessage)
	}

	return &presentationOutput{Body: view}, nil
}

func (s *Server) viewerHandler(ctx context.Context, input *presentationInput) (*htmlResponse, error) {
	id := strings.TrimSpace(input.ID)
	presentation, err := s.library.Get(ctx, id)
	if err != nil {
		s.recordError(ctx, err, "loading presentation", logrus.Fields{"presentation_id": id})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
	}
	if presentation == nil {
		return s.renderErrorResponse(ctx, stdhttp.StatusNotFound, "We couldn't find that presentation.")
	}

	data := templates.DeckPageData{
		Title:             presentation.Title,
		Message:           presentation.Message,
		Status:            presentation.Status,
		StatusDescription: presentation.StatusDescription,
		Finished:          presentation.Finished(),
		Failed:            presentation.Status == library.StatusFailed,
		Error:             presentation.Error,
	}

	if presentation.Status == library.StatusCompleted {
		var slides []map[string]any
		if err := decodeColumn(presentation.Slides, &slides); err != nil {
			s.recordError(ctx, err, "decoding stored slides", logrus.Fields{"presentation_id": id})
			return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "This presentation could not be displayed.")
		}
		for i, slide := range slides {
			view := templates.SlideView{Number: i + 1}
			view.Type, _ = slide["type"].(string)
			view.Title, _ = slide["title"].(string)
			view.Content, _ = slide["content"].(map[string]any)
			data.Slides = append(data.Slides, view)
		}
		_ = decodeColumn(presentation.Warnings, &data.Warnings)
		data.UsageLabel = fmt.Sprintf("%d input tokens, %d output tokens, $%.4f",
			presentation.InputTokens, presentation.OutputTokens, presentation.Cost)
	}

	body, err := renderComponent(ctx, templates.DeckPage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering presentation", logrus.Fields{"presentation_id": id})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't render this presentation.")
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"
	resp.Body.Library = "ready"

	sqlDB, err := db.SQLDB(s.db)
	if err != nil {
		s.recordError(ctx, err, "obtaining sql db", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	} else if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
		s.recordError(ctx, pingErr, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	if resp.Status == 0 {
		resp.Status = stdhttp.StatusOK
	}

	return resp, nil
}

func summarize(p *library.Presentation) PresentationSummary {
	return PresentationSummary{
		ID:                p.ID,
		Title:             p.Title,
		Status:            p.Status,
		StatusDescription: p.StatusDescription,
		CreatedAt:         p.CreatedAt,
		CompletedAt:       p.CompletedAt,
	}
}

func (s *Server) presentationView(p *library.Presentation) (presentationView, error) {
	view := presentationView{
		PresentationSummary: summarize(p),
		Message:             p.Message,
		Error:               p.Error,
		Usage:               usageView{InputTokens: p.InputTokens, OutputTokens: p.OutputTokens, Cost: p.Cost},
		Events:              make([]statusEventView, 0, len(p.Events)),
		DebugFiles:          make([]debugFileView, 0, len(p.DebugFiles)),
	}

	for _, column := range []struct {
		raw    string
		target any
	}{
		{p.Slides, &view.Slides},
		{p.Plan, &view.Plan},
		{p.Research, &view.Research},
		{p.Warnings, &view.Warnings},
	} {
		if err := decodeColumn(column.raw, column.target); err != nil {
			return presentationView{}, err
		}
	}

	for _, event := range p.Events {
		view.Events = append(view.Events, statusEventView{Phase: event.Phase, Message: event.Message, Time: event.CreatedAt})
	}
	for _, file := range p.DebugFiles {
		view.DebugFiles = append(view.DebugFiles, debugFileView{
			Filename: file.Filename,
			Context:  file.Context,
			Error:    file.Error,
			Size:     file.Size,
			Time:     file.CreatedAt,
		})
	}

	return view, nil
}

func decodeColumn(raw string, target any) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), target)
}

func newHTMLResponse(status int, body []byte) *htmlResponse {
	return &htmlResponse{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

func (s *Server) renderErrorResponse(ctx context.Context, status int, message string) (*htmlResponse, error) {
	label := fmt.Sprintf("%d %s", status, stdhttp.StatusText(status))
	title := fmt.Sprintf("%s • Deckforge", label)
	template := templates.ErrorPage(templates.ErrorPageData{
		Title:       title,
		StatusLabel: label,
		Message:     message,
	})

	body, err := renderComponent(ctx, template)
	if err != nil {
		s.recordError(ctx, err, "rendering error page", logrus.Fields{"status": status})
		fallback := []byte(fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", label, message))
		return newHTMLResponse(status, fallback), nil
	}

	return newHTMLResponse(status, body), nil
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
