package server

import (
	"time"

	"newsdesk/pocketbase"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

const (
	sessionCookie  = "newsdesk_session"
	sessionMaxAge  = 7 * 24 * time.Hour
	sessionLocsKey = "session"
)

// sessionMiddleware resolves the session cookie to a store-backed user via
// token refresh. An absent or stale token yields an anonymous session; the
// request proceeds either way.
func (s *server) sessionMiddleware(c *fiber.Ctx) error {
	sess := pocketbase.Anonymous(s.pb)

	if token := c.Cookies(sessionCookie); token != "" {
		auth, err := s.pb.AuthRefresh(c.UserContext(), pocketbase.UsersCollection, token)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Debug("Session token refresh failed")
			clearSessionCookie(c)
		} else {
			user := auth.Record
			sess = &pocketbase.Session{
				Client: s.pb.WithToken(auth.Token),
				User:   &user,
			}
			if auth.Token != token {
				setSessionCookie(c, auth.Token)
			}
		}
	}

	c.Locals(sessionLocsKey, sess)
	return c.Next()
}

// session returns the request's resolved session. Always non-nil once the
// middleware has run.
func session(c *fiber.Ctx) *pocketbase.Session {
	if sess, ok := c.Locals(sessionLocsKey).(*pocketbase.Session); ok {
		return sess
	}
	return nil
}

// sessionUserID keys caches per user; anonymous requests share one key.
func sessionUserID(c *fiber.Ctx) string {
	if sess := session(c); sess.Authenticated() {
		return sess.User.ID
	}
	return ""
}

func setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Expires:  time.Now().Add(sessionMaxAge),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}

func clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}
