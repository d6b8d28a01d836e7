package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/alem-hub/mentorship-engine/internal/application/command"
	"github.com/alem-hub/mentorship-engine/internal/application/query"
	"github.com/alem-hub/mentorship-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOs
// ══════════════════════════════════════════════════════════════════════════════

type initiateMatchingRequest struct {
	Force         bool   `json:"force"`
	CorrelationID string `json:"correlation_id" validate:"omitempty,max=128"`
}

type rejectMatchRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type manualMatchRequest struct {
	MenteeID string `json:"mentee_id" validate:"required,max=128"`
	MentorID string `json:"mentor_id" validate:"required,max=128,nefield=MenteeID"`
}

type listMatchesParams struct {
	Limit  int `json:"limit" validate:"min=0,max=200"`
	Offset int `json:"offset" validate:"min=0"`
}

type previewParams struct {
	Limit int `json:"limit" validate:"min=0,max=100"`
}

// requireActor writes 401 when the caller did not identify itself.
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := getActorID(r.Context())
	if actor == "" {
		writeJSONError(w, r, http.StatusUnauthorized, "unauthorized", ActorHeader+" header is required")
		return "", false
	}
	return actor, true
}

func notConfigured(w http.ResponseWriter, r *http.Request, what string) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", what+" handler not configured")
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRAM HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleInitiateMatching handles POST /api/v1/programs/{programID}/matching
func (s *Server) handleInitiateMatching(w http.ResponseWriter, r *http.Request) {
	if s.deps.InitiateMatching == nil {
		notConfigured(w, r, "Initiate matching")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req initiateMatchingRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = getRequestID(r.Context())
	}
	programID := mux.Vars(r)["programID"]

	result, err := s.deps.InitiateMatching.Handle(r.Context(), command.InitiateMatchingCommand{
		ProgramID:     programID,
		Force:         req.Force,
		CorrelationID: correlationID,
	})
	if err != nil {
		writeDomainError(w, r, "initiate_matching", err)
		return
	}

	logger.FromContext(r.Context()).Info("batch matching initiated",
		logger.ProgramID(programID),
		logger.ActorID(actor),
		logger.Int("pending", result.Pending),
		logger.Int("needing_manual", result.NeedingManual),
	)
	writeJSON(w, r, http.StatusOK, result)
}

// handleManualMatch handles POST /api/v1/programs/{programID}/matches
func (s *Server) handleManualMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.ManualMatch == nil {
		notConfigured(w, r, "Manual match")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req manualMatchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	match, err := s.deps.ManualMatch.Handle(r.Context(), command.ManualMatchCommand{
		ProgramID:     mux.Vars(r)["programID"],
		MenteeID:      req.MenteeID,
		MentorID:      req.MentorID,
		CoordinatorID: actor,
	})
	if err != nil {
		writeDomainError(w, r, "create_manual_match", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, query.NewMatchDTO(match))
}

// handleProgramStats handles GET /api/v1/programs/{programID}/stats
func (s *Server) handleProgramStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.ProgramStats == nil {
		notConfigured(w, r, "Program stats")
		return
	}

	stats, err := s.deps.ProgramStats.Handle(r.Context(), mux.Vars(r)["programID"])
	if err != nil {
		writeDomainError(w, r, "get_program_stats", err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// handlePreviewCandidates handles GET /api/v1/programs/{programID}/mentees/{menteeID}/candidates
func (s *Server) handlePreviewCandidates(w http.ResponseWriter, r *http.Request) {
	if s.deps.PreviewCandidates == nil {
		notConfigured(w, r, "Preview candidates")
		return
	}

	limit, err := getQueryParamInt(r, "limit", 10)
	if err != nil {
		writeDomainError(w, r, "preview_candidates", err)
		return
	}
	params := previewParams{Limit: limit}
	if !s.validateStruct(w, r, &params) {
		return
	}

	vars := mux.Vars(r)
	result, err := s.deps.PreviewCandidates.Handle(r.Context(), query.PreviewCandidatesQuery{
		ProgramID: vars["programID"],
		MenteeID:  vars["menteeID"],
		Limit:     params.Limit,
	})
	if err != nil {
		writeDomainError(w, r, "preview_candidates", err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListMatches handles GET /api/v1/matches
func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListMatches == nil {
		notConfigured(w, r, "List matches")
		return
	}

	limit, err := getQueryParamInt(r, "limit", 0)
	if err != nil {
		writeDomainError(w, r, "list_matches", err)
		return
	}
	offset, err := getQueryParamInt(r, "offset", 0)
	if err != nil {
		writeDomainError(w, r, "list_matches", err)
		return
	}
	params := listMatchesParams{Limit: limit, Offset: offset}
	if !s.validateStruct(w, r, &params) {
		return
	}

	q := r.URL.Query()
	result, err := s.deps.ListMatches.Handle(r.Context(), query.ListMatchesQuery{
		ProgramID: q.Get("program_id"),
		MenteeID:  q.Get("mentee_id"),
		MentorID:  q.Get("mentor_id"),
		Statuses:  getQueryParamList(r, "status"),
		Types:     getQueryParamList(r, "type"),
		Limit:     params.Limit,
		Offset:    params.Offset,
	})
	if err != nil {
		writeDomainError(w, r, "list_matches", err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result.Matches, &ResponseMeta{
		Limit:  result.Limit,
		Offset: result.Offset,
		Count:  len(result.Matches),
	})
}

// handleGetMatch handles GET /api/v1/matches/{matchID}
func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetMatch == nil {
		notConfigured(w, r, "Get match")
		return
	}

	match, err := s.deps.GetMatch.Handle(r.Context(), mux.Vars(r)["matchID"])
	if err != nil {
		writeDomainError(w, r, "get_match", err)
		return
	}
	writeJSON(w, r, http.StatusOK, match)
}

// handleAcceptMatch handles POST /api/v1/matches/{matchID}/accept
func (s *Server) handleAcceptMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.AcceptMatch == nil {
		notConfigured(w, r, "Accept match")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	matchID := mux.Vars(r)["matchID"]
	match, err := s.deps.AcceptMatch.Handle(r.Context(), command.AcceptMatchCommand{
		MatchID: matchID,
		ActorID: actor,
	})
	if err != nil {
		writeDomainError(w, r, "accept_match", err)
		return
	}

	logger.FromContext(r.Context()).Info("match accepted", logger.MatchID(matchID), logger.MentorID(actor))
	writeJSON(w, r, http.StatusOK, query.NewMatchDTO(match))
}

// handleRejectMatch handles POST /api/v1/matches/{matchID}/reject
func (s *Server) handleRejectMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.RejectMatch == nil {
		notConfigured(w, r, "Reject match")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req rejectMatchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	matchID := mux.Vars(r)["matchID"]
	match, err := s.deps.RejectMatch.Handle(r.Context(), command.RejectMatchCommand{
		MatchID: matchID,
		ActorID: actor,
		Reason:  req.Reason,
	})
	if err != nil {
		writeDomainError(w, r, "reject_match", err)
		return
	}

	logger.FromContext(r.Context()).Info("match rejected", logger.MatchID(matchID), logger.MentorID(actor))
	writeJSON(w, r, http.StatusOK, query.NewMatchDTO(match))
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSweep handles POST /api/v1/admin/sweep
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.deps.ExpireMatches == nil {
		notConfigured(w, r, "Expiry sweep")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	result, err := s.deps.ExpireMatches.Handle(r.Context())
	if err != nil {
		writeDomainError(w, r, "run_sweep", err)
		return
	}

	logger.FromContext(r.Context()).Info("manual sweep finished",
		logger.ActorID(actor),
		logger.Int("expired", result.Expired),
		logger.Bool("lock_contended", result.LockContended),
	)
	writeJSON(w, r, http.StatusOK, result)
}
