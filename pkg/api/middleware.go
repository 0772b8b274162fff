package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// requestLogger logs incoming HTTP requests.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("remote", r.RemoteAddr).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

// requireWriteAuth checks HTTP basic credentials against the configured
// users. With auth disabled every request passes.
func (s *server) requireWriteAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Auth.Enabled {
			next.ServeHTTP(w, r)

			return
		}

		username, password, ok := r.BasicAuth()
		if !ok || !s.validCredentials(username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="ingestoor"`)
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"authentication required"})

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *server) validCredentials(username, password string) bool {
	for i := range s.cfg.Auth.Users {
		user := &s.cfg.Auth.Users[i]

		if subtle.ConstantTimeCompare(
			[]byte(user.Username), []byte(username)) != 1 {
			continue
		}

		return bcrypt.CompareHashAndPassword(
			[]byte(user.PasswordHash), []byte(password)) == nil
	}

	return false
}
