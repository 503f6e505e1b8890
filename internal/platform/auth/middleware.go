package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultRoleClaim    = "role"
	defaultEmailClaim   = "email"
	defaultNameClaim    = "name"
	defaultClockLeeway  = 30 * time.Second
	defaultTokenTTL     = 12 * time.Hour
	defaultTokenIssuer  = "gearbelt-api"
	signingMethodPrefix = "HS"
)

var (
	// ErrTokenExpired signals that the provided bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided bearer token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Authenticator verifies HMAC-signed staff tokens and enforces role boundaries.
type Authenticator struct {
	secret []byte

	roleClaim  string
	emailClaim string
	nameClaim  string

	issuer   string
	leeway   time.Duration
	tokenTTL time.Duration

	now func() time.Time
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleClaim overrides the claim used for role extraction.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithIssuer overrides the issuer recorded in issued tokens.
func WithIssuer(issuer string) Option {
	return func(a *Authenticator) {
		issuer = strings.TrimSpace(issuer)
		if issuer != "" {
			a.issuer = issuer
		}
	}
}

// WithClockLeeway adjusts the tolerated clock skew during verification.
func WithClockLeeway(d time.Duration) Option {
	return func(a *Authenticator) {
		if d >= 0 {
			a.leeway = d
		}
	}
}

// WithTokenTTL sets the lifetime of tokens issued via IssueToken.
func WithTokenTTL(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.tokenTTL = d
		}
	}
}

// WithClock injects a time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(secret string, opts ...Option) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}

	a := &Authenticator{
		secret:     []byte(secret),
		roleClaim:  defaultRoleClaim,
		emailClaim: defaultEmailClaim,
		nameClaim:  defaultNameClaim,
		issuer:     defaultTokenIssuer,
		leeway:     defaultClockLeeway,
		tokenTTL:   defaultTokenTTL,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a, nil
}

// IssueToken mints a signed token for the provided identity.
func (a *Authenticator) IssueToken(identity *Identity) (string, error) {
	if a == nil {
		return "", errors.New("auth: authenticator is nil")
	}
	if identity == nil || strings.TrimSpace(identity.ID) == "" {
		return "", errors.New("auth: identity with id is required")
	}

	now := a.now()
	claims := jwt.MapClaims{
		"iss": a.issuer,
		"sub": identity.ID,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	if identity.Email != "" {
		claims[a.emailClaim] = identity.Email
	}
	if identity.Name != "" {
		claims[a.nameClaim] = identity.Name
	}
	if len(identity.Roles) > 0 {
		roles := make([]string, 0, len(identity.Roles))
		for _, role := range identity.Roles {
			if normalized := normaliseRole(role); normalized != "" {
				roles = append(roles, normalized)
			}
		}
		claims[a.roleClaim] = roles
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates the raw token, returning the extracted identity.
func (a *Authenticator) Verify(raw string) (*Identity, error) {
	if a == nil {
		return nil, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if !strings.HasPrefix(token.Method.Alg(), signingMethodPrefix) {
			return nil, fmt.Errorf("%w: unexpected signing method %s", ErrTokenInvalid, token.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	subject, _ := claims["sub"].(string)
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	identity := &Identity{
		ID:    subject,
		Email: claimAsString(claims, a.emailClaim),
		Name:  claimAsString(claims, a.nameClaim),
		Roles: rolesFromClaims(claims, a.roleClaim),
	}
	return identity, nil
}

// RequireAuth verifies the Authorization bearer token and ensures allowed roles.
// With no roles provided, any authenticated staff identity passes.
func (a *Authenticator) RequireAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			identity, err := a.Verify(tokenStr)
			if err != nil {
				respondVerificationError(w, err)
				return
			}

			if len(identity.Roles) == 0 {
				respondAuthError(w, http.StatusUnauthorized, "missing_role", "no roles associated with identity")
				return
			}

			if len(allowed) > 0 && !hasAllowedRole(identity.Roles, allowed) {
				respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasAllowedRole(identityRoles []string, allowed map[string]struct{}) bool {
	for _, role := range identityRoles {
		if _, ok := allowed[normaliseRole(role)]; ok {
			return true
		}
	}
	return false
}

func rolesFromClaims(claims jwt.MapClaims, key string) []string {
	raw, ok := claims[key]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case string:
		role := normaliseRole(v)
		if role == "" {
			return nil
		}
		return []string{role}
	case []interface{}:
		out := make([]string, 0, len(v))
		seen := make(map[string]struct{}, len(v))
		for _, value := range v {
			str, ok := value.(string)
			if !ok {
				continue
			}
			role := normaliseRole(str)
			if role == "" {
				continue
			}
			if _, exists := seen[role]; exists {
				continue
			}
			seen[role] = struct{}{}
			out = append(out, role)
		}
		return out
	case []string:
		out := make([]string, 0, len(v))
		seen := make(map[string]struct{}, len(v))
		for _, item := range v {
			role := normaliseRole(item)
			if role == "" {
				continue
			}
			if _, exists := seen[role]; exists {
				continue
			}
			seen[role] = struct{}{}
			out = append(out, role)
		}
		return out
	default:
		return nil
	}
}

func claimAsString(claims jwt.MapClaims, key string) string {
	raw, ok := claims[key]
	if !ok {
		return ""
	}
	if str, ok := raw.(string); ok {
		return strings.TrimSpace(str)
	}
	return ""
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}

	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "bearer token expired")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "bearer token invalid")
	}
}
