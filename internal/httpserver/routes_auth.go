package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/betwixt-game/betwixt/internal/store"
)

// Accounts are optional: a logged-in session keeps playing the same game
// rows, but wins start counting toward persistent stats. Logging in from a
// session also claims the session's existing games for the account.

const authCookieDefault = "betwixt_auth"

type ctxUserKey struct{}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) mountAuthRoutes() {
	s.r.Post("/auth/signup", s.handleSignup)
	s.r.Post("/auth/login", s.handleLogin)
	s.r.Post("/auth/logout", s.handleLogout)

	s.r.With(s.requireUser).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r)
		ok(w, map[string]any{"id": u.ID, "username": u.Username})
	})

	s.r.With(s.requireUser).Get("/stats/me", func(w http.ResponseWriter, r *http.Request) {
		u, err := s.store.UserByID(r.Context(), currentUser(r).ID)
		if err != nil {
			fail(w, http.StatusInternalServerError, "Failed to load stats")
			return
		}
		ok(w, map[string]any{
			"id":          u.ID,
			"gamesPlayed": u.GamesPlayed,
			"wins":        u.Wins,
			"streak":      u.Streak,
		})
	})
}

// handleSignup creates an account, signs the auth token, and claims the
// current session's games if one is attached to the request.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	username := strings.TrimSpace(body.Username)
	if err := validateSignup(username, body.Password); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	u := &store.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			fail(w, http.StatusConflict, "Username taken")
			return
		}
		log.Error().Err(err).Msg("create user")
		fail(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	s.finishAuth(w, r, u)
}

// handleLogin authenticates, sets the auth cookie, and claims session games.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	u, err := s.store.UserByUsername(r.Context(), strings.TrimSpace(body.Username))
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(body.Password)) != nil {
		fail(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	s.finishAuth(w, r, u)
}

// finishAuth signs the token, sets the cookie, and attaches the session.
func (s *Server) finishAuth(w http.ResponseWriter, r *http.Request, u *store.User) {
	tok, exp, err := signAuthJWT(u.ID, u.Username)
	if err != nil {
		fail(w, http.StatusInternalServerError, "Failed to sign token")
		return
	}
	setAuthCookie(w, tok, exp)

	if sess, okSess := s.sessionFromRequest(r); okSess {
		if err := s.store.AttachUser(r.Context(), sess.ID, u.ID); err != nil {
			log.Warn().Err(err).Str("session", sess.ID).Msg("attach user to session")
		}
	}
	ok(w, map[string]any{"id": u.ID, "username": u.Username, "token": tok})
}

// handleLogout clears the auth cookie. The session cookie stays: the
// browser keeps its game identity.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	ok(w, nil)
}

/* ------------------------------ user middleware ---------------------------- */

type authUser struct {
	ID       string
	Username string
}

// requireUser enforces a valid auth token and injects the user into context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := authBearerOrCookie(r)
		if tok == "" {
			fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims := jwt.MapClaims{}
		t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
			return jwtSecret(), nil
		})
		if err != nil || !t.Valid {
			fail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		id, _ := claims["uid"].(string)
		username, _ := claims["username"].(string)
		if id == "" || username == "" {
			fail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if _, err := s.store.UserByID(r.Context(), id); err != nil {
			fail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserKey{}, &authUser{ID: id, Username: username})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *authUser {
	u, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return u
}

/* ------------------------------ auth plumbing ------------------------------ */

// signAuthJWT creates an HS256 token for an account (AUTH_TTL_DAYS, default 14).
func signAuthJWT(id, username string) (string, time.Time, error) {
	days := envInt("AUTH_TTL_DAYS", 14)
	exp := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":      id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      time.Now().Unix(),
	})
	ss, err := t.SignedString(jwtSecret())
	return ss, exp, err
}

func authCookieName() string {
	return getEnv("AUTH_COOKIE_NAME", authCookieDefault)
}

func setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   getEnv("ENV", "") == "production",
		SameSite: http.SameSiteStrictMode,
		Expires:  exp,
	})
}

func authBearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("X-Auth-Token"); a != "" {
		return a
	}
	if c, err := r.Cookie(authCookieName()); err == nil {
		return c.Value
	}
	return ""
}

func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return errors.New("Username must be 3-24 characters")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errors.New("Username may contain letters, numbers, underscore only")
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return errors.New("Password must be 8-100 characters")
	}
	return nil
}
