package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/orchestrator"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/report"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/runs"
)

// maxBodyBytes bounds analyze request bodies, logs included.
const maxBodyBytes = 4 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// analyzeRequest is the JSON body of an analysis request. Log files are not
// accepted over HTTP; callers send log text.
type analyzeRequest struct {
	IssueKey      string  `json:"issue_key"`
	Summary       string  `json:"summary,omitempty"`
	Component     string  `json:"component,omitempty"`
	Domain        string  `json:"domain,omitempty"`
	OS            string  `json:"os,omitempty"`
	Logs          string  `json:"logs,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	Limit         int     `json:"limit,omitempty"`
	MinLocalScore float64 `json:"min_local_score,omitempty"`
	External      *bool   `json:"external,omitempty"`
	SaveRun       bool    `json:"save_run,omitempty"`
}

func (s *Server) toRequest(in analyzeRequest) orchestrator.Request {
	ext := s.pipeline.ExternalKnowledge
	if in.External != nil {
		ext = *in.External
	}
	return orchestrator.Request{
		IssueKey:      in.IssueKey,
		Summary:       in.Summary,
		Component:     in.Component,
		Domain:        in.Domain,
		OS:            in.OS,
		LogText:       in.Logs,
		Notes:         in.Notes,
		Limit:         in.Limit,
		MinLocalScore: in.MinLocalScore,
		External:      ext,
		SaveRun:       in.SaveRun,
	}
}

// streamMessage is sent over the analysis websocket.
type streamMessage struct {
	Type      string               `json:"type"` // "event", "result" or "error"
	State     string               `json:"state,omitempty"`
	ElapsedMS int64                `json:"elapsed_ms,omitempty"`
	Detail    string               `json:"detail,omitempty"`
	Result    *orchestrator.Result `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", "json", "markdown", "html":
	default:
		writeError(w, http.StatusBadRequest, "format must be json, markdown or html")
		return
	}

	var in analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := s.analyzer.Run(r.Context(), s.toRequest(in))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	switch format {
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(report.Markdown(res.Bundle())))
	case "html":
		page, err := report.HTML(res.Bundle())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// handleAnalyzeStream reads one analyze request per message and streams the
// pipeline states followed by the result.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		var in analyzeRequest
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		req := s.toRequest(in)
		req.Observer = func(e orchestrator.Event) {
			s.send(conn, streamMessage{
				Type:      "event",
				State:     e.State.String(),
				ElapsedMS: e.Elapsed.Milliseconds(),
				Detail:    e.Detail,
			})
		}
		res, err := s.analyzer.Run(r.Context(), req)
		if err != nil {
			s.send(conn, streamMessage{Type: "error", Error: err.Error()})
			continue
		}
		s.send(conn, streamMessage{Type: "result", Result: res})
	}
}

func (s *Server) send(conn *websocket.Conn, msg streamMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("websocket write failed", zap.Error(err))
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	matches, diag, err := s.analyzer.Search(r.Context(), q.Get("q"), q.Get("component"), q.Get("domain"), intParam(r, "limit", 0))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":     q.Get("q"),
		"matches":   matches,
		"prefilter": diag,
	})
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	doc, err := s.issues.Fetch(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	doc, err := s.issues.Fetch(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	q := r.URL.Query()
	matches, diag, err := s.analyzer.Search(r.Context(), doc.EmbeddingText(), q.Get("component"), q.Get("domain"), intParam(r, "limit", 0), doc.Key)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"issue_key": doc.Key,
		"matches":   matches,
		"prefilter": diag,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	key := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "key")))
	out := []runs.Record{}
	if s.runs != nil {
		recs, err := s.runs.ListByIssue(r.Context(), key, intParam(r, "limit", 20))
		if err != nil {
			s.writeErr(w, err)
			return
		}
		if recs != nil {
			out = recs
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// writeErr maps typed pipeline errors to HTTP statuses.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, rcaerr.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, rcaerr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, rcaerr.ErrProvider), errors.Is(err, rcaerr.ErrNetwork):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
