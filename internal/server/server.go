// Package server exposes the answer pipeline over HTTP with JSON
// request/response envelopes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"insight/internal/answer"
	"insight/internal/config"
	"insight/internal/noql"
	"insight/internal/schema"
	"insight/internal/store"
	"insight/internal/types"
)

// Server is the HTTP shell around the orchestrator.
type Server struct {
	cfg          *config.Config
	orchestrator *answer.Orchestrator
	store        *store.Store
	hints        *noql.Hints
	catalog      schema.Catalog
	logger       *zap.Logger
	httpServer   *http.Server
}

// New builds the server and its route table.
func New(cfg *config.Config, orch *answer.Orchestrator, st *store.Store, hints *noql.Hints, catalog schema.Catalog, logger *zap.Logger) *Server {
	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		store:        st,
		hints:        hints,
		catalog:      catalog,
		logger:       logger,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table wrapped in CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/ping", s.handlePing)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	mux.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/execute-query", s.handleExecuteQuery)
	mux.HandleFunc("GET /api/schema", s.handleSchema)
	mux.HandleFunc("GET /api/inspect", s.handleInspect)
	return s.corsMiddleware(mux)
}

// ListenAndServe blocks until the context is cancelled or the listener
// fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := s.cfg.Server.CORSOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			for _, a := range allowed {
				if a == "*" || strings.EqualFold(a, origin) {
					if a == "*" {
						w.Header().Set("Access-Control-Allow-Origin", "*")
					} else {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Set("Vary", "Origin")
					}
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
					break
				}
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  "healthy",
		"name":    s.cfg.Name,
		"version": s.cfg.Version,
	})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "pong"})
}

type askRequest struct {
	Question       string `json:"question"`
	Dataset        string `json:"database_name"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeBadRequest(w, "question is required")
		return
	}
	dataset := s.datasetOrDefault(req.Dataset)

	resp, err := s.orchestrator.Answer(r.Context(), req.Question, dataset, req.ConversationID)
	if err != nil {
		s.writeAnswerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"answer_markdown": resp.Markdown,
		"charts":          resp.Charts,
		"conversation_id": resp.ConversationID,
		"response_mode":   resp.Mode,
		"database_name":   dataset,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	conversations, err := s.store.ListConversations(limit)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversations": conversations})
}

type createConversationRequest struct {
	Title   string `json:"title"`
	Dataset string `json:"database_name"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "Invalid JSON body")
			return
		}
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = store.DefaultTitle
	}
	id, err := s.store.CreateConversation(title, s.datasetOrDefault(req.Dataset))
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversation_id": id})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeBadRequest(w, "conversation id is required")
		return
	}
	if err := s.store.DeleteConversation(id); err != nil {
		s.writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": id})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("conversation_id")
	if id == "" {
		writeBadRequest(w, "conversation_id query parameter is required")
		return
	}
	history, err := s.store.GetHistory(id)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": history})
}

type executeQueryRequest struct {
	Question string `json:"question"`
	Dataset  string `json:"database_name"`
	Format   string `json:"format"`
}

func (s *Server) handleExecuteQuery(w http.ResponseWriter, r *http.Request) {
	var req executeQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeBadRequest(w, "question is required")
		return
	}

	res, err := s.orchestrator.Direct(r.Context(), req.Question, s.datasetOrDefault(req.Dataset), req.Format)
	if err != nil {
		s.writeAnswerError(w, err)
		return
	}
	payload := map[string]any{
		"success": true,
		"query":   res.Query,
		"columns": res.Result.Columns,
		"rows":    res.Result.Rows,
	}
	if res.Chart != nil {
		payload["chart"] = res.Chart
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleSchema returns the full catalog, or a single collection when
// ?collection= is given (any schema alias or casing resolves).
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("collection"); name != "" {
		col, ok := s.catalog.Lookup(name)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"error": map[string]string{
					"kind":    "unknown_collection",
					"message": "No collection named " + name,
				},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "collection": col})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"collections": s.catalog.Collections,
	})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	if s.hints == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "tables": map[string]any{}})
		return
	}
	if r.URL.Query().Get("refresh") == "1" {
		s.hints.Invalidate()
	}
	counts := s.hints.TableCounts(r.Context())
	samples := s.hints.Samples(r.Context())

	tables := make(map[string]any, len(counts))
	for _, name := range s.catalog.Names() {
		entry := map[string]any{}
		if n, ok := counts[name]; ok {
			entry["row_count"] = n
		}
		if sample, ok := samples[name]; ok {
			entry["columns"] = sample.Columns
			entry["sample_rows"] = sample.Rows
		}
		tables[name] = entry
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tables": tables})
}

func (s *Server) datasetOrDefault(dataset string) string {
	if strings.TrimSpace(dataset) != "" {
		return dataset
	}
	return s.cfg.Reporting.DefaultDataset
}

func (s *Server) writeAnswerError(w http.ResponseWriter, err error) {
	var ae *types.AnswerError
	if errors.As(err, &ae) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error": map[string]string{
				"kind":       ae.Kind,
				"message":    ae.Message,
				"suggestion": ae.Suggestion,
			},
		})
		return
	}
	s.writeInternalError(w, err)
}

func (s *Server) writeInternalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"error": map[string]string{
			"kind":    "internal_error",
			"message": err.Error(),
		},
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error": map[string]string{
			"kind":    "invalid_request",
			"message": message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
