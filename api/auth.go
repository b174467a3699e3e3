/*
auth.go - Actor resolution from bearer tokens

PURPOSE:

	The identity provider is external. It issues HS256 JWTs carrying the
	caller's id, role and department; this file verifies them and turns the
	claims into a generic.Actor stored on the request context. Handlers never
	read identity from anywhere else.

CLAIMS:

	sub        employee id
	role       employee | manager | hr
	department department name (used for manager scope)
	name       display name (optional)

SEE ALSO:
  - generic/actor.go: Actor and scope rules
  - server.go: where Authenticate and RequireRole are mounted
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/leave-engine/generic"
)

// Claims is the token payload issued by the identity provider.
type Claims struct {
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Name       string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type actorKey struct{}

// actorSlot lets middleware mounted above Authenticate see the actor after
// the request returns. RequestLogger installs it.
type actorSlot struct {
	actor generic.Actor
	set   bool
}

type actorSlotKey struct{}

func withActorSlot(ctx context.Context) (context.Context, *actorSlot) {
	slot := &actorSlot{}
	return context.WithValue(ctx, actorSlotKey{}, slot), slot
}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor generic.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (generic.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(generic.Actor)
	return actor, ok
}

// Authenticate verifies the bearer token and attaches the actor.
func Authenticate(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				writeError(w, http.StatusUnauthorized, "Authorization is required", nil)
				return
			}

			actor, err := ParseToken(key, tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token", err)
				return
			}

			if slot, ok := r.Context().Value(actorSlotKey{}).(*actorSlot); ok {
				slot.actor, slot.set = actor, true
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole lets through actors holding any of roles.
func RequireRole(roles ...generic.Role) func(http.Handler) http.Handler {
	allowed := make(map[generic.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authorization is required", nil)
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				writeError(w, http.StatusForbidden, "Forbidden", errors.New("role "+string(actor.Role)+" may not access this endpoint"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ParseToken verifies an HS256 token and maps its claims to an Actor.
func ParseToken(key []byte, tokenString string) (generic.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return generic.Actor{}, err
	}
	if !token.Valid {
		return generic.Actor{}, errors.New("invalid token")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return generic.Actor{}, errors.New("token has no subject")
	}
	role, ok := generic.ParseRole(claims.Role)
	if !ok {
		return generic.Actor{}, errors.New("token has unknown role " + claims.Role)
	}

	return generic.Actor{
		ID:         generic.EmployeeID(subject),
		Role:       role,
		Department: claims.Department,
	}, nil
}

// IssueToken signs a token for emp. The identity provider does this in
// production; the seed command and tests use it directly.
func IssueToken(secret string, emp generic.Employee, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:       string(emp.Role),
		Department: emp.Department,
		Name:       emp.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(emp.ID),
			Issuer:    "leave-engine",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
