package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/ebucks"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/services/statistics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	serviceTimeout = 8 * time.Second
	maxBodyBytes   = 64 * 1024
)

var validate = validator.New()

type engineHandler func(w http.ResponseWriter, r *http.Request, e *ebucks.Engine)

type api struct {
	registry *ebucks.Registry
	stats    *statistics.Service
	logger   *logging.Logger
}

type awardRequest struct {
	Amount   int64             `json:"amount"`
	Reason   string            `json:"reason" validate:"required"`
	Category entities.Category `json:"category"`
	Metadata map[string]string `json:"metadata"`
}

type spendRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason" validate:"required"`
}

type completeRequest struct {
	Reward *int64 `json:"reward" validate:"omitempty,gt=0"`
	Note   string `json:"note"`
}

// RegisterRoutes registers the eBucks routes under /v1/ebucks
func RegisterRoutes(r chi.Router, registry *ebucks.Registry, logger *logging.Logger) {
	a := &api{registry: registry, stats: statistics.NewService(registry), logger: logger}
	with := a.withEngine

	r.Route("/v1/ebucks", func(r chi.Router) {
		r.Get("/balance", with(a.getBalance))
		r.Get("/history", with(a.getHistory))
		r.Post("/award", with(a.awardBucks))
		r.Post("/spend", with(a.spendBucks))
		r.Get("/snapshot", with(a.getSnapshot))
		r.Get("/streak", with(a.getStreak))
		r.Get("/stats", with(a.getStatistics))
		r.Get("/leaderboard", a.getLeaderboard)

		r.Route("/challenges", func(r chi.Router) {
			r.Get("/", with(a.listChallenges))
			r.Post("/{id}/complete", with(a.completeChallenge))
			r.Delete("/completions", with(a.resetChallenges))
		})

		r.Route("/wheel", func(r chi.Router) {
			r.Get("/", with(a.getWheel))
			r.Post("/spin", with(a.spinWheel))
			r.Delete("/gate", with(a.resetWheel))
			r.Post("/double", with(a.doubleOrNothing))
			r.Post("/extra-spin", with(a.extraSpin))
		})
	})
}

// withEngine resolves the caller's engine and bounds the request with serviceTimeout
func (a *api) withEngine(h engineHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := headerUserID(r)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "", "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()
		r = r.WithContext(ctx)

		e, err := a.registry.Get(ctx, userID)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		h(w, r, e)
	}
}

func (a *api) getBalance(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	balance, err := e.GetBalance(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	multiplier, err := e.Multiplier(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance, "multiplier": multiplier})
}

func (a *api) getHistory(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	var (
		txs []entities.Transaction
		err error
	)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, types.ErrInvalidArgument, "limit must be a non-negative integer")
			return
		}
		txs, err = e.GetRecentHistory(r.Context(), limit)
	} else {
		txs, err = e.GetHistory(r.Context())
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []entities.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (a *api) awardBucks(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	var body awardRequest
	if !decodeBody(w, r, &body) {
		return
	}
	txID, err := e.AwardBucks(r.Context(), body.Amount, body.Reason, body.Metadata, body.Category)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeBalance(w, r, e, map[string]any{"success": true, "transaction_id": txID})
}

func (a *api) spendBucks(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	var body spendRequest
	if !decodeBody(w, r, &body) {
		return
	}
	ok, err := e.SpendBucks(r.Context(), body.Amount, body.Reason)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	payload := map[string]any{"success": ok}
	if !ok {
		payload["reason"] = "not enough eBucks"
	}
	a.writeBalance(w, r, e, payload)
}

func (a *api) getSnapshot(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	snap, err := e.Refresh(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *api) getStreak(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	st, err := e.LoginStreak(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *api) getStatistics(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	stats, err := e.Statistics(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// getLeaderboard needs no caller; it ranks users with a live engine
func (a *api) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	perPage, ok := queryInt(w, r, "per_page")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	board, err := a.stats.GetLeaderboard(ctx, page, perPage)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (a *api) listChallenges(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	list, err := e.GetDailyChallenges(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	done, err := e.GetTodaysChallengesCompleted(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if done == nil {
		done = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": list, "completed": done})
}

func (a *api) completeChallenge(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, types.ErrInvalidArgument, "missing challenge id")
		return
	}
	var body completeRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}
	ok, err := e.CompleteDailyChallenge(r.Context(), id, body.Reward, body.Note)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	payload := map[string]any{"success": ok, "challenge_id": id}
	if !ok {
		payload["reason"] = "already done today"
	}
	a.writeBalance(w, r, e, payload)
}

func (a *api) resetChallenges(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	removed, err := e.ResetChallengeCompletion(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
}

func (a *api) getWheel(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	canSpin, err := e.CanSpinWheelToday(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	state, err := e.WheelState(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slots":     e.GetWheelSlots(),
		"can_spin":  canSpin,
		"state":     state,
		"last_spin": e.LastSpin(),
		"policy":    e.GamblePolicy(),
	})
}

func (a *api) spinWheel(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	result, err := e.SpinWheel(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) resetWheel(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	if err := e.ResetWheelForToday(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *api) doubleOrNothing(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	settlement, err := e.DoubleOrNothing(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

func (a *api) extraSpin(w http.ResponseWriter, r *http.Request, e *ebucks.Engine) {
	settlement, result, err := e.PaidExtraSpin(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlement": settlement, "result": result})
}

// writeBalance adds the balance after a mutation to payload
func (a *api) writeBalance(w http.ResponseWriter, r *http.Request, e *ebucks.Engine, payload map[string]any) {
	balance, err := e.GetBalance(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	payload["balance"] = balance
	writeJSON(w, http.StatusOK, payload)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrInvalidArgument, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrInvalidArgument, err.Error())
		return false
	}
	return true
}

// queryInt reads an optional non-negative integer parameter, 0 when absent
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, types.ErrInvalidArgument, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func headerUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

// statusOf maps an engine error code to its HTTP status
func statusOf(code types.ErrorCode) int {
	switch code {
	case types.ErrAlreadySpunToday:
		return http.StatusConflict
	case types.ErrInvalidAmount, types.ErrInvalidArgument:
		return http.StatusBadRequest
	case types.ErrUnknownChallenge:
		return http.StatusNotFound
	case types.ErrDebugDisabled:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, code types.ErrorCode, message string) {
	payload := map[string]string{"error": message}
	if code != "" {
		payload["code"] = string(code)
	}
	writeJSON(w, status, payload)
}

// fail writes err as a JSON error, logging the ones that map to a server error
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	var engineErr *types.EngineError
	if !errors.As(err, &engineErr) {
		engineErr = types.WrapError(types.ErrInternalError, "internal error", err)
	}
	status := statusOf(engineErr.Code)
	if status == http.StatusInternalServerError {
		l := a.logger.WithUser(headerUserID(r))
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			l = l.With("request_id", reqID)
		}
		l.LogError(err)
	}
	writeError(w, status, engineErr.Code, engineErr.Message)
}
