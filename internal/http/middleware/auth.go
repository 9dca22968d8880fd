package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/docfinder/appointments-api/internal/auth"
)

// Claims is the bearer token payload. Legacy tokens carry the user id in
// "id" and the role in "type"; newer ones use "sub" and "role".
type Claims struct {
	UserID string `json:"id,omitempty"`
	Type   string `json:"type,omitempty"`
	Role   string `json:"role,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity resolves the caller identity from either claim layout.
func (c *Claims) Identity() auth.Identity {
	subject := strings.TrimSpace(c.Subject)
	if subject == "" {
		subject = strings.TrimSpace(c.UserID)
	}
	role := strings.TrimSpace(c.Role)
	if role == "" {
		role = strings.TrimSpace(c.Type)
	}
	if role == "" {
		role = auth.RoleCustomer
	}
	return auth.Identity{SubjectID: subject, Role: strings.ToLower(role)}
}

// JWTAuth verifies an HMAC-signed bearer token and stores the caller identity in context.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeAuthError(w, http.StatusUnauthorized, "authentication disabled")
				return
			}
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			identity := claims.Identity()
			if identity.SubjectID == "" {
				writeAuthError(w, http.StatusUnauthorized, "token missing subject")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin rejects callers without the admin role. Must run after JWTAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !identity.IsAdmin() {
			writeAuthError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}
