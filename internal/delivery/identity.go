package delivery

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// User is the authenticated identity attached to a request. Identity comes
// from the external auth system; the gateway only verifies its tokens.
type User struct {
	ID     int64
	Gender string
	Admin  bool
}

type userContextKey struct{}

// WithUser returns a context carrying u, for middleware and tests.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFrom extracts the authenticated user from ctx.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userContextKey{}).(User)
	return u, ok
}

type identityClaims struct {
	Gender string `json:"gender"`
	Admin  bool   `json:"admin"`
	jwt.RegisteredClaims
}

// JWTIdentity returns middleware that verifies a `Authorization: Bearer`
// token signed (HMAC) by the auth system and attaches the resulting User to
// the request context. Requests without a valid token proceed anonymously;
// each endpoint decides whether anonymity is acceptable.
func JWTIdentity(secret []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			var claims identityClaims
			token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			u := User{ID: userID, Gender: claims.Gender, Admin: claims.Admin}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
