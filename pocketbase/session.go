package pocketbase

import "newsdesk/models"

// Session pairs a token-bearing store handle with the user it was resolved
// to. A nil session or nil user means an anonymous request. Sessions are
// request-scoped and passed explicitly; there is no shared authenticated
// client.
type Session struct {
	Client *Client
	User   *models.User
}

// Authenticated reports whether the session carries a signed-in user.
func (s *Session) Authenticated() bool {
	return s != nil && s.User != nil && s.Client != nil
}

// Anonymous builds a session with no user for public reads.
func Anonymous(client *Client) *Session {
	return &Session{Client: client}
}
