package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// HeaderOrgRef carries the organization reference when JWT verification is disabled (development only).
const HeaderOrgRef = "X-LeadClaw-Org-Ref"

var errUnauthenticated = errors.New("unauthenticated")

// AuthConfig configures verification of tokens issued by the external auth provider.
type AuthConfig struct {
	JWTSecret string // HS256 secret shared with the auth provider; empty enables the dev header
	OrgClaim  string // claim holding the organization reference (default "org_id")
	NameClaim string // claim holding the organization display name (default "org_name")
}

// Authenticator resolves the calling tenant and provisions it on first access.
type Authenticator struct {
	cfg  AuthConfig
	orgs store.OrganizationStore
}

func NewAuthenticator(cfg AuthConfig, orgs store.OrganizationStore) *Authenticator {
	if cfg.OrgClaim == "" {
		cfg.OrgClaim = "org_id"
	}
	if cfg.NameClaim == "" {
		cfg.NameClaim = "org_name"
	}
	if cfg.JWTSecret == "" {
		slog.Warn("auth.jwt_disabled", "header", HeaderOrgRef)
	}
	return &Authenticator{cfg: cfg, orgs: orgs}
}

// Wrap rejects unauthenticated requests and injects the organization id into the context.
func (a *Authenticator) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, name, err := a.identify(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		org, err := a.orgs.EnsureByAuthRef(r.Context(), ref, name)
		if err != nil {
			slog.Error("auth.ensure_org", "org_ref", ref, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		ctx := store.WithOrgRef(r.Context(), ref)
		ctx = store.WithOrgID(ctx, org.ID)
		next(w, r.WithContext(ctx))
	}
}

func (a *Authenticator) identify(r *http.Request) (ref, name string, err error) {
	if a.cfg.JWTSecret == "" {
		ref = strings.TrimSpace(r.Header.Get(HeaderOrgRef))
		if ref == "" {
			return "", "", errUnauthenticated
		}
		return ref, "", nil
	}

	raw := extractBearerToken(r)
	if raw == "" {
		return "", "", errUnauthenticated
	}
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(a.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", errUnauthenticated, err)
	}

	ref, _ = claims[a.cfg.OrgClaim].(string)
	name, _ = claims[a.cfg.NameClaim].(string)
	if strings.TrimSpace(ref) == "" {
		return "", "", fmt.Errorf("%w: claim %q missing", errUnauthenticated, a.cfg.OrgClaim)
	}
	return ref, name, nil
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
