package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/marginlab/internal/store"
)

const tokenIssuer = "marginlab"

var errAuthDisabled = errors.New("authentication is not configured")

type ctxKey int

const emailKey ctxKey = iota

type credentialStore interface {
	PasswordHash(ctx context.Context, email string) (string, error)
}

type authService struct {
	creds  credentialStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newAuthService(creds credentialStore, secret string, ttl time.Duration) *authService {
	return &authService{creds: creds, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (a *authService) validateCredentials(ctx context.Context, email, password string) (bool, error) {
	hash, err := a.creds.PasswordHash(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("compare password hash: %w", err)
	}
	return true, nil
}

func (a *authService) issueToken(email string) (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, errAuthDisabled
	}

	now := a.now()
	expiresAt := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// verifyToken returns the subject email of a valid token.
func (a *authService) verifyToken(raw string) (string, error) {
	if len(a.secret) == 0 {
		return "", errAuthDisabled
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func (s *server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.TrimSpace(req.Email)
	ok, err := s.auth.validateCredentials(r.Context(), email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		errorResponse(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := s.auth.issueToken(email)
	if errors.Is(err, errAuthDisabled) {
		errorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt.UTC()})
}

func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="marginlab"`)
			errorResponse(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		email, err := s.auth.verifyToken(raw)
		if err != nil {
			s.log.WithError(err).Debug("rejected bearer token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="marginlab", error="invalid_token"`)
			errorResponse(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), emailKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func emailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(emailKey).(string)
	return email
}
