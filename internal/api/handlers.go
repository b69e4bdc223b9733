package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/promotebya/sunbird-client-sub002/internal/app/engagement"
	"github.com/promotebya/sunbird-client-sub002/internal/domain"
)

// ─── Request Helpers ────────────────────────────────────────────────────────

// weekBody is the JSON body shared by challenge mutations.
type weekBody struct {
	PairID   string `json:"pair_id"`
	Premium  bool   `json:"premium"`
	Category string `json:"category"`
	TZ       int    `json:"tz_offset_minutes"`
}

type tzBody struct {
	TZ int `json:"tz_offset_minutes"`
}

// decodeJSON reads an optional JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidArgument, name)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", domain.ErrInvalidArgument, name)
	}
	return b, nil
}

func (b weekBody) request(userID string) engagement.WeekRequest {
	return engagement.WeekRequest{
		UserID:          userID,
		PairID:          b.PairID,
		Premium:         b.Premium,
		Category:        domain.Category(b.Category),
		TZOffsetMinutes: b.TZ,
	}
}

// ─── Catalog ────────────────────────────────────────────────────────────────

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Planner.Catalog())
}

// ─── Weekly Challenges ──────────────────────────────────────────────────────

func (s *Server) handleWeekItems(w http.ResponseWriter, r *http.Request) {
	tz, err := queryInt(r, "tz", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	premium, err := queryBool(r, "premium")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	body := weekBody{
		PairID:   r.URL.Query().Get("pair_id"),
		Premium:  premium,
		Category: r.URL.Query().Get("category"),
		TZ:       tz,
	}
	plan, err := s.engine.Challenges.WeekItems(r.Context(), body.request(chi.URLParam(r, "userID")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var body weekBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.engine.Challenges.UnlockChallenge(r.Context(),
		body.request(chi.URLParam(r, "userID")), chi.URLParam(r, "challengeID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var body weekBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.engine.Challenges.CompleteChallenge(r.Context(),
		body.request(chi.URLParam(r, "userID")), chi.URLParam(r, "challengeID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleSetCompleted(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Completed bool `json:"completed"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	err := s.engine.Challenges.SetCompleted(r.Context(),
		chi.URLParam(r, "userID"), chi.URLParam(r, "weekID"), chi.URLParam(r, "challengeID"), body.Completed)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Streaks ────────────────────────────────────────────────────────────────

func (s *Server) handleStreakView(w http.ResponseWriter, r *http.Request) {
	tz, err := queryInt(r, "tz", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.engine.Streaks.View(r.Context(), chi.URLParam(r, "userID"), tz)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStreakCompletion(w http.ResponseWriter, r *http.Request) {
	var body tzBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	doc, err := s.engine.Streaks.NotifyCompletion(r.Context(), chi.URLParam(r, "userID"), body.TZ)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleActivateCatchup(w http.ResponseWriter, r *http.Request) {
	var body tzBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	doc, err := s.engine.Streaks.ActivateCatchup(r.Context(), chi.URLParam(r, "userID"), body.TZ)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ─── Points & Weekly Goal ───────────────────────────────────────────────────

func (s *Server) handleWeekPoints(w http.ResponseWriter, r *http.Request) {
	tz, err := queryInt(r, "tz", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pairID := chi.URLParam(r, "pairID")
	sum, err := s.engine.Points.CurrentWeekPoints(r.Context(), pairID, tz)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pair_id": pairID, "points": sum})
}

func (s *Server) handleAddPoints(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
		Value  int    `json:"value"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	ev, err := s.engine.Points.AddPoints(r.Context(), chi.URLParam(r, "pairID"), body.UserID, body.Value, body.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleGetWeekly(w http.ResponseWriter, r *http.Request) {
	weekly, err := s.engine.Points.Weekly(r.Context(), chi.URLParam(r, "pairID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weekly)
}

func (s *Server) handleEnsureWeekly(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Target int `json:"target"`
		TZ     int `json:"tz_offset_minutes"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.Target == 0 {
		body.Target = s.opts.DefaultTarget
	}
	weekly, err := s.engine.Points.EnsureWeekly(r.Context(), chi.URLParam(r, "pairID"), body.Target, body.TZ)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weekly)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RewardID string `json:"reward_id"`
		TZ       int    `json:"tz_offset_minutes"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	weekly, err := s.engine.Points.ClaimWeeklyReward(r.Context(), chi.URLParam(r, "pairID"), body.RewardID, body.TZ)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weekly)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tz, err := queryInt(r, "tz", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 12)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries, err := s.engine.Points.History(r.Context(), chi.URLParam(r, "pairID"), limit, tz)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
