package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/models"
)

const (
	userHeader    = "X-User-ID"
	maxUserIDSize = 128
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// fail maps err onto a status code. Unmarked errors are logged and hidden
// behind a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeError(w, status, "internal server error")
		return
	}
	s.writeError(w, status, err.Error())
}

// readBody reads the capped request body. Oversized bodies answer 413.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		s.writeError(w, http.StatusBadRequest, "could not read request body")
		return nil, false
	}
	return body, true
}

// decode reads the body, validates it against schema and unmarshals it into dst.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if err := s.schemas.validate(schema, body); err != nil {
		s.fail(w, r, err)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		s.fail(w, r, apperr.Validation("", "request body does not match the expected shape"))
		return false
	}
	return true
}

// authenticate enforces the bearer token on /api/ routes when one is configured.
func (s *Server) authenticate(next http.Handler) http.Handler {
	token := strings.TrimSpace(s.cfg.APIToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && strings.HasPrefix(r.URL.Path, "/api/") {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="bookaimark"`)
				s.writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
				return
			}
		}
		if id := strings.TrimSpace(r.Header.Get(userHeader)); len(id) > maxUserIDSize {
			s.writeError(w, http.StatusBadRequest, "X-User-ID is too long")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userID identifies the caller. There is no account system; callers without
// the header share the default user.
func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(userHeader)); id != "" {
		return id
	}
	return models.DefaultUserID
}

func queryBool(r *http.Request, key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.Validation("", key+" must be a boolean")
	}
	return v, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperr.Validation("", key+" must be a non-negative integer")
	}
	return v, nil
}

// optionalString is a JSON field that distinguishes absent, null and a value.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// cleared reports whether the field was explicitly nulled or emptied.
func (o optionalString) cleared() bool {
	return o.Set && (o.Value == nil || strings.TrimSpace(*o.Value) == "")
}
