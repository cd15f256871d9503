// Package ctlserver exposes a running search over HTTP: an unauthenticated
// read-only status endpoint and a token-gated cancel endpoint. It is a
// thin adapter over the driver's context-based cancellation and persists
// nothing; stopping the server never stops the search by itself.
package ctlserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/synlog"
	"golang.org/x/crypto/bcrypt"
)

// Status is the payload of GET /status.
type Status struct {
	RunID     string `json:"run_id"`
	Nodes     int    `json:"nodes"`
	RootLabel string `json:"root_label"`
	Done      bool   `json:"done"`
}

// Server wires the status source and the cancel hook into a chi router.
type Server struct {
	status     func() Status
	cancel     context.CancelFunc
	secretHash []byte
	secret     string
	log        *synlog.Logger
}

// New builds a Server around the given status source and cancel hook. The
// returned secret authorizes POST /cancel; the caller is expected to print
// it once at startup and never store it. The server keeps the secret as the
// JWT signing key and checks a token's subject against its bcrypt hash.
func New(status func() Status, cancel context.CancelFunc, log *synlog.Logger) (*Server, string, error) {
	if log == nil {
		log = synlog.Discard()
	}
	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", synerr.Wrap(err, synerr.Configuration, "cannot hash control secret")
	}
	return &Server{
		status:     status,
		cancel:     cancel,
		secretHash: hash,
		secret:     secret,
		log:        log,
	}, secret, nil
}

// Token mints the bearer token that authorizes POST /cancel against a
// server whose secret is the given string: an HS256 JWT signed with the
// secret whose subject is the secret itself.
func Token(secret string) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   secret,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	return tok.SignedString([]byte(secret))
}

// Router builds the HTTP routes. The caller owns the listener lifecycle.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", s.handleStatus)
	r.Post("/cancel", s.handleCancel)
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status()); err != nil {
		s.log.Err().Err(err).Log("cannot encode status response")
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, req *http.Request) {
	tok, err := bearerToken(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err := s.validateToken(tok); err != nil {
		s.log.Warning().Err(err).Log("rejected cancel request")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	s.log.Info().Log("cancellation requested over HTTP")
	s.cancel()
	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(req *http.Request) (string, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return "", synerr.New(synerr.Configuration, "missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", synerr.New(synerr.Configuration, "Authorization header is not a bearer token")
	}
	return parts[1], nil
}

// validateToken checks the JWT's signature and that its subject carries
// the shared secret, compared against the stored bcrypt hash.
func (s *Server) validateToken(tok string) error {
	parsed, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, synerr.Newf(synerr.Configuration, "unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return err
	}
	subj, err := parsed.Claims.GetSubject()
	if err != nil {
		return synerr.Wrap(err, synerr.Configuration, "token has no subject")
	}
	return bcrypt.CompareHashAndPassword(s.secretHash, []byte(subj))
}
