package http

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/meta"
	"github.com/nextlevelbuilder/leadclaw/internal/metrics"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
	"github.com/nextlevelbuilder/leadclaw/pkg/protocol"
)

const (
	stateIssuer   = "leadclaw"
	stateAudience = "meta_connect"
	stateTTL      = 10 * time.Minute
)

// StateSigner issues and checks the OAuth state parameter: a short-lived HS256
// JWT whose subject is the organization id.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner uses secret, or a random per-process key when secret is empty
// (pending connects then do not survive a restart).
func NewStateSigner(secret string) *StateSigner {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("http: crypto/rand failed: " + err.Error())
		}
	}
	return &StateSigner{secret: key, ttl: stateTTL, now: time.Now}
}

func (s *StateSigner) Sign(orgID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		Subject:   orgID.String(),
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// Verify returns the organization id carried by a valid, unexpired state.
func (s *StateSigner) Verify(state string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid state: %w", err)
	}
	return uuid.Parse(claims.Subject)
}

// ConnectCompleter finishes the OAuth flow. *meta.Exchanger implements it.
type ConnectCompleter interface {
	Complete(ctx context.Context, orgID uuid.UUID, code string) (*meta.ConnectResult, error)
}

// MetaOAuthHandler serves the Meta connect start and callback.
type MetaOAuthHandler struct {
	auth         *Authenticator
	graph        *meta.GraphClient
	exchanger    ConnectCompleter
	states       *StateSigner
	dashboardURL string
}

func NewMetaOAuthHandler(auth *Authenticator, graph *meta.GraphClient, exchanger ConnectCompleter, states *StateSigner, dashboardURL string) *MetaOAuthHandler {
	return &MetaOAuthHandler{auth: auth, graph: graph, exchanger: exchanger, states: states, dashboardURL: dashboardURL}
}

// RegisterRoutes registers the OAuth routes. The callback is unauthenticated;
// the signed state identifies the tenant.
func (h *MetaOAuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/meta/connect", h.auth.Wrap(h.handleConnect))
	mux.HandleFunc("GET /v1/meta/callback", h.handleCallback)
}

func (h *MetaOAuthHandler) handleConnect(w http.ResponseWriter, r *http.Request) {
	if !h.graph.Config().Configured() {
		writeError(w, http.StatusServiceUnavailable, "meta app is not configured")
		return
	}
	state, err := h.states.Sign(store.OrgIDFromContext(r.Context()))
	if err != nil {
		slog.Error("meta.oauth.state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	authURL := h.graph.AuthorizeURL(state)
	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, authURL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": authURL})
}

func (h *MetaOAuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		slog.Info("meta.oauth.denied", "error", e, "reason", q.Get("error_reason"))
		h.redirectError(w, r, protocol.MetaErrorDenied)
		return
	}

	orgID, err := h.states.Verify(q.Get("state"))
	if err != nil {
		slog.Warn("meta.oauth.bad_state", "error", err)
		h.redirectError(w, r, protocol.MetaErrorServer)
		return
	}
	code := q.Get("code")
	if code == "" {
		h.redirectError(w, r, protocol.MetaErrorTokenExchange)
		return
	}

	res, err := h.exchanger.Complete(r.Context(), orgID, code)
	if err != nil {
		reason := protocol.MetaErrorServer
		var se *meta.StepError
		if errors.As(err, &se) {
			reason = se.Reason()
		}
		slog.Error("meta.oauth.failed", "org_id", orgID, "reason", reason, "error", err)
		h.redirectError(w, r, reason)
		return
	}

	pages, err := json.Marshal(res.Pages)
	if err != nil {
		h.redirectError(w, r, protocol.MetaErrorServer)
		return
	}
	metrics.ObserveOAuth("success")
	v := url.Values{}
	v.Set(protocol.ParamMetaSuccess, "1")
	v.Set(protocol.ParamMetaPages, string(pages))
	http.Redirect(w, r, h.dashboardRedirect(v), http.StatusFound)
}

func (h *MetaOAuthHandler) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	metrics.ObserveOAuth(reason)
	v := url.Values{}
	v.Set(protocol.ParamMetaError, reason)
	http.Redirect(w, r, h.dashboardRedirect(v), http.StatusFound)
}

// dashboardRedirect appends v to the dashboard URL, keeping any query it already has.
func (h *MetaOAuthHandler) dashboardRedirect(v url.Values) string {
	base := h.dashboardURL
	if base == "" {
		base = "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return "/?" + v.Encode()
	}
	q := u.Query()
	for k, vals := range v {
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String()
}
