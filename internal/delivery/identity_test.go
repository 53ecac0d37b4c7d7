package delivery

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signTestToken(t *testing.T, secret []byte, userID string, gender string, admin bool) string {
	t.Helper()
	claims := identityClaims{
		Gender: gender,
		Admin:  admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func identityProbe(got *User, ok *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, *ok = UserFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTIdentity_ValidToken(t *testing.T) {
	secret := []byte("shared-with-auth-service")
	var got User
	var ok bool

	h := JWTIdentity(secret)(identityProbe(&got, &ok))
	req := httptest.NewRequest(http.MethodGet, "/lessons/5/status", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, secret, "7", GenderFemale, false))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !ok {
		t.Fatal("expected an authenticated user in context")
	}
	if got.ID != 7 || got.Gender != GenderFemale || got.Admin {
		t.Errorf("unexpected user: %+v", got)
	}
}

func TestJWTIdentity_AdminClaim(t *testing.T) {
	secret := []byte("shared-with-auth-service")
	var got User
	var ok bool

	h := JWTIdentity(secret)(identityProbe(&got, &ok))
	req := httptest.NewRequest(http.MethodPost, "/lessons/5/video", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, secret, "1", GenderMale, true))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !ok || !got.Admin {
		t.Errorf("expected admin identity, got ok=%v user=%+v", ok, got)
	}
}

func TestJWTIdentity_AnonymousWithoutHeader(t *testing.T) {
	var got User
	var ok bool

	h := JWTIdentity([]byte("secret"))(identityProbe(&got, &ok))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/lessons/5/status", nil))

	if ok {
		t.Errorf("expected anonymous request, got user %+v", got)
	}
}

func TestJWTIdentity_WrongSecretIsAnonymous(t *testing.T) {
	var got User
	var ok bool

	h := JWTIdentity([]byte("right-secret"))(identityProbe(&got, &ok))
	req := httptest.NewRequest(http.MethodGet, "/lessons/5/status", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, []byte("wrong-secret"), "7", GenderMale, false))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if ok {
		t.Error("a token signed with the wrong secret must not authenticate")
	}
}

func TestJWTIdentity_NonNumericSubjectIsAnonymous(t *testing.T) {
	secret := []byte("secret")
	var got User
	var ok bool

	h := JWTIdentity(secret)(identityProbe(&got, &ok))
	req := httptest.NewRequest(http.MethodGet, "/lessons/5/status", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, secret, "not-a-number", GenderMale, false))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if ok {
		t.Error("a token without a numeric subject must not authenticate")
	}
}
