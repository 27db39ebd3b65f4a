// internal/stubapi/auth.go
package stubapi

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var errMissingBearer = errors.New("missing bearer token")

// IssueToken mints an HS256 token accepted by a server configured with the
// same secret.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.authenticate(r.Header.Get("Authorization")); err != nil {
			s.logger.Debug("rejected credentials", zap.String("path", r.URL.Path), zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, errorResponse{Message: err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(header string) error {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return errMissingBearer
	}

	switch {
	case s.config.JWTSecret != "":
		return verifyJWT(raw, s.config.JWTSecret)
	case s.config.Token != "":
		if subtle.ConstantTimeCompare([]byte(raw), []byte(s.config.Token)) != 1 {
			return errors.New("invalid token")
		}
	}
	return nil
}

func verifyJWT(raw, secret string) error {
	_, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	return nil
}
