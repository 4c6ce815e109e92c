package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/ingest"
)

// Stable error codes carried in JSON error bodies.
const (
	codeAuthFailed   = 1002
	codeEmptyQuery   = 1003
	codeBadJSON      = 4001
	codeNoMessages   = 4002
	codeBadMode      = 4003
	codeInternal     = 5000
	codeIngestFailed = 5001
	codeUploadFailed = 5003
)

// Score threshold applied when a retrieval request omits one.
const defaultScoreThreshold float32 = 0.5

// In-memory bound for multipart parsing; larger uploads spill to disk.
const multipartMemory = 32 << 20

// How many run reports /stats returns.
const statsRunLimit = 10

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

type uploadResponse struct {
	Status     string          `json:"status"`
	Mode       string          `json:"mode"`
	BackupPath string          `json:"backup_path,omitempty"`
	Report     *core.RunReport `json:"report"`
}

type ingestRequest struct {
	Mode string `json:"mode"`
}

type ingestResponse struct {
	Status string          `json:"status"`
	Report *core.RunReport `json:"report"`
}

type retrievalRequest struct {
	Query          string   `json:"query"`
	TopK           int      `json:"top_k"`
	ScoreThreshold *float32 `json:"score_threshold"`
}

type retrievalResponse struct {
	Results []retrievalResult `json:"results"`
	Count   int               `json:"count"`
}

type retrievalResult struct {
	ThreadID string         `json:"thread_id"`
	Content  string         `json:"content"`
	Score    float32        `json:"score"`
	Metadata resultMetadata `json:"metadata"`
}

type resultMetadata struct {
	Participants []string  `json:"participants"`
	MessageCount int       `json:"message_count"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	SourceChat   string    `json:"source_chat,omitempty"`
	WordCount    int       `json:"word_count"`
}

type healthResponse struct {
	Status    string          `json:"status"`
	Documents int             `json:"documents"`
	LastRun   *core.RunReport `json:"last_run,omitempty"`
}

type statsResponse struct {
	Documents int               `json:"documents"`
	Runs      []*core.RunReport `json:"runs"`
}

// upload accepts a Telegram export as a multipart "file" field or as the
// raw request body, applies it in merge or replace mode, and returns the
// resulting run report. mode and chat_name/source_tag come from query or
// form parameters.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	modeParam := query.Get("mode")
	tag := query.Get("chat_name")
	if tag == "" {
		tag = query.Get("source_tag")
	}

	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, codeBadJSON, fmt.Sprintf("invalid multipart body: %v", err))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadJSON, "multipart upload requires a file field")
			return
		}
		defer file.Close()
		body = file

		// Form values override query parameters once the form is parsed.
		if v := r.FormValue("mode"); v != "" {
			modeParam = v
		}
		if v := r.FormValue("chat_name"); v != "" {
			tag = v
		} else if v := r.FormValue("source_tag"); v != "" {
			tag = v
		}
	}

	mode, err := ingest.ParseUploadMode(modeParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadMode, err.Error())
		return
	}

	outcome, err := s.archive.ApplyUpload(r.Context(), body, ingest.UploadOptions{Mode: mode, SourceTag: tag})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidExport):
			writeError(w, http.StatusBadRequest, codeBadJSON, err.Error())
		case errors.Is(err, core.ErrMissingMessages):
			writeError(w, http.StatusBadRequest, codeNoMessages, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeUploadFailed, fmt.Sprintf("upload failed: %v", err))
		}
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Status:     "success",
		Mode:       string(outcome.Mode),
		BackupPath: outcome.BackupPath,
		Report:     outcome.Report,
	})
}

// ingest triggers a pipeline run over the configured export corpus. An
// empty body or empty mode runs incrementally; "force" re-embeds
// everything.
func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeBadJSON, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	mode, err := ingest.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadMode, err.Error())
		return
	}

	report, err := s.archive.Ingest(r.Context(), mode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeIngestFailed, fmt.Sprintf("ingestion failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{Status: "success", Report: report})
}

// retrieval runs hybrid search and returns scored documents with their
// metadata. top_k outside 1..20 is clamped by the searcher; a missing
// score_threshold defaults to 0.5.
func (s *Server) retrieval(w http.ResponseWriter, r *http.Request) {
	var req retrievalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadJSON, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, codeEmptyQuery, "query cannot be empty")
		return
	}

	threshold := defaultScoreThreshold
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}

	results, err := s.archive.Search(r.Context(), req.Query, req.TopK, threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, fmt.Sprintf("search failed: %v", err))
		return
	}

	payload := retrievalResponse{Results: make([]retrievalResult, 0, len(results)), Count: len(results)}
	for _, res := range results {
		meta := res.Document.Metadata
		payload.Results = append(payload.Results, retrievalResult{
			ThreadID: res.Document.ThreadID,
			Content:  res.Document.Body,
			Score:    res.Score,
			Metadata: resultMetadata{
				Participants: meta.Participants,
				MessageCount: meta.MessageCount,
				StartTime:    meta.StartTime,
				EndTime:      meta.EndTime,
				SourceChat:   meta.SourceChat,
				WordCount:    meta.WordCount,
			},
		})
	}

	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	count, err := s.archive.CountDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, fmt.Sprintf("store unavailable: %v", err))
		return
	}
	last, err := s.archive.LatestRun(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, fmt.Sprintf("store unavailable: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Documents: count, LastRun: last})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	count, err := s.archive.CountDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, fmt.Sprintf("store unavailable: %v", err))
		return
	}
	runs, err := s.archive.RecentRuns(r.Context(), statsRunLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, fmt.Sprintf("store unavailable: %v", err))
		return
	}
	if runs == nil {
		runs = []*core.RunReport{}
	}

	writeJSON(w, http.StatusOK, statsResponse{Documents: count, Runs: runs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
