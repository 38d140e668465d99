package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/edaloom-cli/internal/ai"
	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/KaramelBytes/edaloom-cli/internal/metrics"
	"github.com/KaramelBytes/edaloom-cli/internal/report"
	"github.com/gorilla/mux"
)

const previewRows = 5

// Analyzer produces free-text insights for a dataset.
type Analyzer interface {
	Analyze(ctx context.Context, ds *dataset.Dataset) (*ai.InsightsResponse, error)
}

// Handler provides the session API.
type Handler struct {
	store     *Store
	insights  Analyzer
	logger    *slog.Logger
	maxUpload int64
}

// NewHandler creates a new API handler. maxUpload is in bytes.
func NewHandler(store *Store, insights Analyzer, logger *slog.Logger, maxUpload int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, insights: insights, logger: logger, maxUpload: maxUpload}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods("GET")

	r.HandleFunc("/sessions", h.handleListSessions).Methods("GET")
	r.HandleFunc("/sessions", h.handleCreateSession).Methods("POST")
	r.HandleFunc("/sessions/{id}", h.handleGetSession).Methods("GET")
	r.HandleFunc("/sessions/{id}", h.handleDeleteSession).Methods("DELETE")
	r.HandleFunc("/sessions/{id}/cleaned.csv", h.handleCleanedCSV).Methods("GET")
	r.HandleFunc("/sessions/{id}/report.html", h.handleReport).Methods("GET")
	r.HandleFunc("/sessions/{id}/heatmap.png", h.handleHeatmap).Methods("GET")
	r.HandleFunc("/sessions/{id}/insights", h.handleInsights).Methods("POST")
	r.HandleFunc("/sessions/{id}/recommend", h.handleRecommend).Methods("GET")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response", "err", err)
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondFile(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	if filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type columnView struct {
	Name    string       `json:"name"`
	Kind    dataset.Kind `json:"kind"`
	Missing int          `json:"missing"`
	Unique  int          `json:"unique"`
}

type fillView struct {
	Column   string `json:"column"`
	Strategy string `json:"strategy"`
	Filled   int    `json:"filled"`
	Value    string `json:"value"`
}

type imputationView struct {
	Message       string     `json:"message"`
	MissingBefore int        `json:"missing_before"`
	MissingAfter  int        `json:"missing_after"`
	Columns       []fillView `json:"columns"`
	Unfillable    []string   `json:"unfillable,omitempty"`
}

type sessionView struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Created    time.Time      `json:"created"`
	Rows       int            `json:"rows"`
	Columns    []columnView   `json:"columns"`
	Imputation imputationView `json:"imputation"`
	Preview    [][]string     `json:"preview"`
	Numeric    bool           `json:"has_numeric"`
}

func viewOf(s *Session) sessionView {
	v := sessionView{
		ID:      s.ID,
		Name:    s.Name,
		Created: s.Created,
		Rows:    s.Data.NumRows(),
		Preview: s.Data.Head(previewRows),
		Numeric: len(s.Data.NumericColumns()) > 0,
		Imputation: imputationView{
			Message:       s.Imputation.String(),
			MissingBefore: s.Imputation.MissingBefore,
			MissingAfter:  s.Imputation.MissingAfter,
			Columns:       []fillView{},
			Unfillable:    s.Imputation.Unfillable,
		},
	}
	for _, c := range s.Data.Columns {
		v.Columns = append(v.Columns, columnView{Name: c.Name, Kind: c.Kind, Missing: c.MissingCount(), Unique: c.Unique()})
	}
	for _, f := range s.Imputation.Columns {
		strategy := "mean"
		if f.Kind == dataset.Categorical {
			strategy = "mode"
		}
		v.Imputation.Columns = append(v.Imputation.Columns, fillView{Column: f.Name, Strategy: strategy, Filled: f.Filled, Value: f.FillValue})
	}
	return v
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := mux.Vars(r)["id"]
	s, ok := h.store.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", id))
		return nil, false
	}
	return s, true
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.store.Len()})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	out := []map[string]any{}
	for _, s := range h.store.List() {
		out = append(out, map[string]any{"id": s.ID, "name": s.Name, "rows": s.Data.NumRows(), "created": s.Created})
	}
	respondJSON(w, http.StatusOK, out)
}

// handleCreateSession ingests a multipart "file" field or a raw request body.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	name, body, err := readUpload(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit))
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, err := parseUpload(name, body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.ObserveIngest("upload")
	s := NewSession(ds, int64(len(body)))
	for _, old := range h.store.Add(s) {
		h.logger.Info("session evicted", "id", old)
	}
	h.logger.Info("session created", "id", s.ID, "name", s.Name, "rows", ds.NumRows(), "cols", len(ds.Columns),
		"missing_before", s.Imputation.MissingBefore, "missing_after", s.Imputation.MissingAfter)
	respondJSON(w, http.StatusCreated, viewOf(s))
}

func readUpload(r *http.Request) (string, []byte, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/") {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("read form file: %w", err)
		}
		defer file.Close()
		b, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("read upload: %w", err)
		}
		return filepath.Base(hdr.Filename), b, nil
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.csv"
	}
	return filepath.Base(name), b, nil
}

func parseUpload(name string, body []byte) (*dataset.Dataset, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty upload")
	}
	opt := dataset.DefaultReadOptions()
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".xlsx") {
		return dataset.ReadWorkbook(bytes.NewReader(body), int64(len(body)), name, opt)
	}
	if strings.HasSuffix(lower, ".tsv") {
		opt.Delimiter = '\t'
	}
	return dataset.Read(bytes.NewReader(body), name, opt)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.store.Delete(id) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCleanedCSV(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	b, err := s.Data.CSVBytes()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondFile(w, "text/csv", "cleaned_dataset.csv", b)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	imp := s.Imputation
	b, err := report.HTML(report.Input{Profile: s.Profile, Imputation: &imp, SizeBytes: s.SizeBytes})
	if err != nil {
		h.logger.Error("render report", "id", s.ID, "err", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondFile(w, "text/html; charset=utf-8", "EDA_Report.html", b)
}

func (h *Handler) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.Heatmap(s.Profile.Corr, &buf); err != nil {
		if report.IsWarning(err) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondFile(w, "image/png", "", buf.Bytes())
}

// handleInsights always answers 200: a failed remote call is displayed
// content, not a server error.
func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	resp, err := h.insights.Analyze(r.Context(), s.Data)
	if err != nil {
		h.logger.Warn("insights request failed", "id", s.ID, "err", err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"text": ai.DisplayText(resp, err)})
}

func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	target := r.URL.Query().Get("target")
	if target == "" {
		respondError(w, http.StatusBadRequest, "target query parameter is required")
		return
	}
	rec, err := analysis.Recommend(s.Data, target)
	if err != nil {
		if errors.Is(err, dataset.ErrColumnNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"target":   rec.Target,
		"family":   rec.Family,
		"kind":     rec.Kind,
		"unique":   rec.Unique,
		"examples": rec.Family.Examples(),
		"message":  rec.String(),
	})
}
