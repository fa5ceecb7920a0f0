package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/betwixt-game/betwixt/internal/store"
)

// Sessions are issued explicitly by POST /session: the server creates a
// session row, signs a JWT carrying the session id, and sets it as an
// httpOnly SameSite=Strict cookie. Game routes require the token (cookie or
// Authorization bearer) and never create sessions implicitly.

const sessionCookieDefault = "betwixt_session"

type ctxSessionKey struct{}

// handleIssueSession creates a fresh session and returns its token.
func (s *Server) handleIssueSession(w http.ResponseWriter, r *http.Request) {
	sess := &store.Session{ID: uuid.NewString(), CreatedAt: s.now().UTC()}
	if err := s.store.CreateSession(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("create session")
		fail(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	tok, exp, err := signSessionJWT(sess.ID)
	if err != nil {
		fail(w, http.StatusInternalServerError, "Failed to sign session token")
		return
	}
	setSessionCookie(w, tok, exp)
	ok(w, map[string]any{"sessionId": sess.ID, "token": tok})
}

// requireSession verifies the session token and loads the session row.
// An absent or unknown session is a 401; there is no implicit creation.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessionFromRequest(r)
		if !ok {
			fail(w, http.StatusUnauthorized, "No session, call POST /session first")
			return
		}
		ctx := context.WithValue(r.Context(), ctxSessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFromRequest extracts and validates the session, if any.
func (s *Server) sessionFromRequest(r *http.Request) (*store.Session, bool) {
	tok := sessionBearerOrCookie(r)
	if tok == "" {
		return nil, false
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return jwtSecret(), nil
	})
	if err != nil || !t.Valid {
		return nil, false
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return nil, false
	}
	sess, err := s.store.SessionByID(r.Context(), sid)
	if err != nil {
		return nil, false
	}
	return sess, true
}

// currentSession returns the session placed in context by requireSession.
func currentSession(r *http.Request) *store.Session {
	sess, _ := r.Context().Value(ctxSessionKey{}).(*store.Session)
	return sess
}

/* --------------------------- JWT & cookie plumbing ------------------------- */

func jwtSecret() []byte {
	return []byte(getEnv("JWT_SECRET", "dev_secret_change_me"))
}

// signSessionJWT creates an HS256 token with the session id and a long
// expiry (SESSION_TTL_DAYS, default 365) so a browser keeps its identity
// across daily puzzles.
func signSessionJWT(sessionID string) (string, time.Time, error) {
	days := envInt("SESSION_TTL_DAYS", 365)
	exp := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": sessionID,
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	})
	ss, err := t.SignedString(jwtSecret())
	return ss, exp, err
}

func sessionCookieName() string {
	return getEnv("SESSION_COOKIE_NAME", sessionCookieDefault)
}

func setSessionCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   getEnv("ENV", "") == "production",
		SameSite: http.SameSiteStrictMode,
		Expires:  exp,
	})
}

// sessionBearerOrCookie extracts the session token from the Authorization
// header or the session cookie.
func sessionBearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(sessionCookieName()); err == nil {
		return c.Value
	}
	return ""
}
