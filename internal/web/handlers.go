package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tablefix/internal/core"
	"github.com/JonMunkholm/tablefix/internal/logging"
	"github.com/JonMunkholm/tablefix/internal/session"
	"github.com/JonMunkholm/tablefix/internal/table"
	"github.com/JonMunkholm/tablefix/internal/web/templates"
)

var errRateLimited = errors.New("rate limit exceeded")

// handleIndex renders the HTML page. With a session_id query value it shows
// that session's current table.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := templates.PageData{
		SessionID:  r.URL.Query().Get("session_id"),
		Extensions: table.SupportedExtensions(),
	}
	if data.SessionID == "" {
		data.SessionID = s.service.NewSession()
	} else {
		info, err := s.service.Info(requestContext(r, data.SessionID), data.SessionID)
		switch {
		case err == nil:
			data.Filename = info.Filename
			data.Revision = info.Revision
			data.RowCount = info.RowCount
			data.Preview = &info.Preview
		case errors.Is(err, session.ErrNotFound):
			// Fresh or expired session: show the upload form only.
		default:
			s.respondError(w, r, err, 0)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Page(data).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}

// handleHealth reports liveness and transform slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"transforms": s.service.Limiter().Status(),
	})
}

// handleNewSession issues a session id.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": s.service.NewSession()})
}

// handleEndSession drops a session's table.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if err := s.service.EndSession(requestContext(r, id), id); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTable returns the session's current table, limited to the preview
// row count unless ?rows= asks for fewer.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	info, err := s.service.Info(requestContext(r, id), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if n := parseIntParam(r, "rows", 0); n > 0 {
		info.Preview = info.Preview.Head(n)
	}
	writeJSON(w, http.StatusOK, info)
}

// handleExport downloads the session's full current table as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	ctx := requestContext(r, id)
	info, err := s.service.Info(ctx, id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	t, err := s.service.Current(ctx, id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	name := strings.TrimSuffix(info.Filename, path.Ext(info.Filename)) + "_cleaned.csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := table.WriteCSV(w, *t, ','); err != nil {
		logging.FromContext(ctx).Error("export failed", "error", err)
	}
}

// handleHistory returns the session's accepted transformations.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	hist, err := s.service.History(requestContext(r, id), id, parseIntParam(r, "limit", 0))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": hist})
}

// handleUpload ingests a multipart file into the session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	// Leave headroom for the multipart envelope; the service enforces the
	// exact file limit.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.respondError(w, r, core.ErrFileTooLarge, 0)
			return
		}
		s.respondError(w, r, core.ErrNoFile, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.ErrNoFile, 0)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	id := sessionID(r)
	res, err := s.service.Upload(requestContext(r, id), id, header.Filename, data)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// transformBody is the JSON body of /api/transform.
type transformBody struct {
	core.TransformRequest
	SessionID string `json:"session_id"`
}

// handleTransform evaluates candidates against the session's table. It
// accepts JSON or a plain form post from the HTML page.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var body transformBody
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
	} else {
		body.Instruction = r.FormValue("natural_language")
		body.Columns = splitList(r.FormValue("columns"))
		body.ApplyPhoneNormalization = r.FormValue("apply_phone_normalization") != ""
		body.ApplyDateNormalization = r.FormValue("apply_date_normalization") != ""
	}

	id := sessionID(r)
	if id == "" {
		id = body.SessionID
	}

	res, err := s.service.Transform(requestContext(r, id), id, body.TransformRequest)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// previewBody is the JSON body of /api/llm-preview.
type previewBody struct {
	Instruction string   `json:"natural_language"`
	Columns     []string `json:"columns"`
}

// handleLLMPreview returns the planner's plan without applying it.
func (s *Server) handleLLMPreview(w http.ResponseWriter, r *http.Request) {
	var body previewBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	plan, err := s.service.Preview(requestContext(r, ""), body.Instruction, body.Columns)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": plan})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// splitList splits a comma-separated form value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
