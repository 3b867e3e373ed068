package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/domain"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/usecase"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), map[string]string{"status": "healthy"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	q := r.URL.Query()

	opts := usecase.ProcessOptions{Policy: q.Get("policy")}
	if raw := q.Get("dry_run"); raw != "" {
		dry, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest, codeBadRequest, "dry_run must be a boolean")
			return
		}
		opts.DryRun = dry
	}

	// A client disconnect must not stop the batch halfway.
	res, err := s.engine.ProcessDueItems(context.WithoutCancel(r.Context()), opts)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	stats, err := s.engine.Stats(r.Context(), r.URL.Query().Get("policy"))
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, stats)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	policies, err := s.engine.Policies(r.Context())
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	if policies == nil {
		policies = []domain.Policy{}
	}
	respondOK(w, reqID, policies)
}

func (s *Server) handleSavePolicy(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var p domain.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, reqID, http.StatusBadRequest, codeBadRequest, "invalid policy body: "+err.Error())
		return
	}
	p.Name = chi.URLParam(r, "name")

	saved, err := s.engine.SavePolicy(r.Context(), p)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, saved)
}

func (s *Server) handleRegisterArticle(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	article, err := s.engine.RegisterArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, article)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	article, err := s.engine.Article(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, article)
}

type scheduleBody struct {
	ArticleID string     `json:"article_id"`
	Policy    string     `json:"policy"`
	PublishAt *time.Time `json:"publish_at"`
	Priority  *int       `json:"priority"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body scheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, http.StatusBadRequest, codeBadRequest, "invalid schedule body: "+err.Error())
		return
	}
	if body.ArticleID == "" {
		respondError(w, reqID, http.StatusBadRequest, codeBadRequest, "article_id is required")
		return
	}

	item, err := s.engine.Schedule(r.Context(), usecase.ScheduleRequest{
		ArticleID: body.ArticleID,
		Policy:    body.Policy,
		At:        body.PublishAt,
		Priority:  body.Priority,
	})
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	item, err := s.engine.Item(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, item)
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body struct {
		PublishAt *time.Time `json:"publish_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, reqID, http.StatusBadRequest, codeBadRequest, "invalid reschedule body: "+err.Error())
		return
	}

	item, err := s.engine.Reschedule(r.Context(), chi.URLParam(r, "id"), body.PublishAt)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, item)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	item, err := s.engine.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, item)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if _, err := s.engine.Publish(r.Context(), id); err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	item, err := s.engine.Item(r.Context(), id)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, item)
}
