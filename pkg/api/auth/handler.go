// Package auth issues and checks the bearer tokens on the HTTP surface.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

// Handler owns the user registry and token issuance. The registry is
// in-process; accounts exist to scope the demo surface, not to be a
// production identity system.
type Handler struct {
	mu     sync.RWMutex
	users  map[string]userRecord
	secret []byte
}

type userRecord struct {
	salt string
	hash string
}

func NewHandler() *Handler {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "loanflow-dev-secret"
	}
	return &Handler{
		users:  make(map[string]userRecord),
		secret: []byte(secret),
	}
}

// HandleRegister creates an account from form fields username/password.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	username, password, ok := formCredentials(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.users[username]; exists {
		http.Error(w, "username already registered", http.StatusConflict)
		return
	}
	salt := randomSalt()
	h.users[username] = userRecord{salt: salt, hash: hashPassword(salt, password)}
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, `{"username":%q}`, username)
}

// HandleLogin verifies form credentials and issues a bearer token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, ok := formCredentials(w, r)
	if !ok {
		return
	}

	h.mu.RLock()
	record, exists := h.users[username]
	h.mu.RUnlock()
	if !exists || subtle.ConstantTimeCompare(
		[]byte(record.hash), []byte(hashPassword(record.salt, password))) != 1 {
		http.Error(w, "invalid credentials", http.StatusForbidden)
		return
	}

	token, err := h.issueToken(username)
	if err != nil {
		http.Error(w, "token issuance failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":%q,"token_type":"bearer"}`, token)
}

// Middleware rejects requests without a valid bearer token and stashes the
// username in the request context via header rewrite.
func (h *Handler) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, err := h.VerifyRequest(r)
		if err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		r.Header.Set("X-Authenticated-User", username)
		next(w, r)
	}
}

// VerifyRequest checks the Authorization header and returns the subject.
func (h *Handler) VerifyRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", fmt.Errorf("missing bearer token")
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Subject, nil
}

func (h *Handler) issueToken(username string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

func formCredentials(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return "", "", false
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return "", "", false
	}
	return username, password, true
}

func hashPassword(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + ":" + password))
	return hex.EncodeToString(sum[:])
}

func randomSalt() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
