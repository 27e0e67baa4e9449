package client

import (
	"net/http"
)

// Option configures a Client.
type Option func(*Client)

// WithUserID sets the user identity sent with every request.
func WithUserID(userID string) Option {
	return func(c *Client) { c.userID = userID }
}

// WithHTTPClient replaces the default http.Client. Clients with a
// Timeout set will cut long-lived chat streams short; prefer per-call
// contexts.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}
