package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hamed0406/netmanager/internal/auth"
	"github.com/hamed0406/netmanager/internal/domain"
	"github.com/hamed0406/netmanager/internal/netquality"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !decode(r, &in) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}
	u, err := s.Auth.Register(r.Context(), in)
	if err != nil {
		var verr *auth.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, verr.Fields)
			return
		}
		s.Logger.Error("register_failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not register"})
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Auth.ListUsers(r.Context())
	if err != nil {
		s.Logger.Error("list_users_failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list error"})
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c auth.Credentials
	if !decode(r, &c) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}
	res, err := s.Auth.Login(r.Context(), c)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": err.Error()})
			return
		}
		s.Logger.Error("login_failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not log in"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type refreshPayload struct {
	Refresh string `json:"refresh"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var p refreshPayload
	if !decode(r, &p) || p.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"refresh": {"This field is required."}})
		return
	}
	access, err := s.Auth.Refresh(r.Context(), p.Refresh)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
			return
		}
		s.Logger.Error("token_refresh_failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not refresh"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (s *Server) handleNetworkStats(w http.ResponseWriter, r *http.Request) {
	res, err := s.Assessor.Assess(r.Context())
	if err != nil {
		s.writeAssessmentError(w, "network_stats_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Optimizer.Optimize(r.Context())
	if err != nil {
		s.writeAssessmentError(w, "optimize_network_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// writeAssessmentError maps ConfigUnavailable to 503 and everything else to 500.
func (s *Server) writeAssessmentError(w http.ResponseWriter, event string, err error) {
	status := http.StatusInternalServerError
	if netquality.KindOf(err) == netquality.ConfigUnavailable {
		status = http.StatusServiceUnavailable
	}
	msg := err.Error()
	if msg == "" {
		msg = "network measurement failed"
	}
	s.Logger.Warn(event, zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHistory(link string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string][]string{"limit": {"A valid positive integer is required."}})
				return
			}
			limit = min(n, maxHistoryLimit)
		}
		recs := []domain.MeasurementRecord{}
		if s.History != nil {
			got, err := s.History.Recent(r.Context(), link, limit)
			if err != nil {
				s.Logger.Error("history_failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history error"})
				return
			}
			if got != nil {
				recs = got
			}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}
