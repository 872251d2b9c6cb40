package fakeapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

type contextKey int

const ctxUserID contextKey = iota

// RequestUserID returns the authenticated user id from the context, or 0.
func RequestUserID(ctx context.Context) int64 {
	v, _ := ctx.Value(ctxUserID).(int64)
	return v
}

// Middleware returns HTTP middleware that validates Bearer tokens.
// Requests without a valid, unexpired token get a 401 envelope.
func (s *Server) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			s.logger.Debug("middleware: no bearer token",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			s.unauthorized.Add(1)
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")

			return
		}

		userID, err := s.issuer.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			s.logger.Debug("middleware: invalid bearer token",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			s.unauthorized.Add(1)
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")

			return
		}

		if _, ok := s.Store.User(userID); !ok {
			s.unauthorized.Add(1)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unknown user")

			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserID, userID)))
	})
}
