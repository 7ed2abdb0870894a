// Package pocketbase is a thin client for the PocketBase record API. Only the
// parts of the API the app needs are covered: password auth, token refresh,
// filtered record listing and record create/update/delete.
package pocketbase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"newsdesk/models"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// UsersCollection is the auth collection regular accounts live in.
// SuperusersCollection is the privileged collection the mirror worker
// authenticates against.
const (
	UsersCollection      = "users"
	SuperusersCollection = "_superusers"
)

// Client talks to a single PocketBase instance. The zero token client acts as
// an anonymous caller; derive an authenticated handle with WithToken instead
// of mutating a shared client.
type Client struct {
	rc    *resty.Client
	token string
}

func New(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{rc: rc}
}

// WithToken returns a copy of the client that sends the given auth token on
// every request. The receiver is not modified.
func (c *Client) WithToken(token string) *Client {
	return &Client{rc: c.rc, token: token}
}

// Token returns the auth token the client sends, empty for anonymous clients.
func (c *Client) Token() string {
	return c.token
}

// ListOptions control record listing. Zero values are omitted from the query.
type ListOptions struct {
	Page    int
	PerPage int
	Sort    string
	Filter  string
	Fields  string
}

// ListResult is one page of records. Items are raw so callers can decode
// into their own record shapes.
type ListResult struct {
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	TotalItems int               `json:"totalItems"`
	Items      []json.RawMessage `json:"items"`
}

// Auth is the outcome of a password auth or token refresh.
type Auth struct {
	Token  string      `json:"token"`
	Record models.User `json:"record"`
}

func (c *Client) request(ctx context.Context) *resty.Request {
	// Force JSON decoding so a response with a missing or sniffed
	// content type still unmarshals into the result.
	req := c.rc.R().SetContext(ctx).ForceContentType("application/json")
	if c.token != "" {
		req.SetHeader("Authorization", c.token)
	}
	return req
}

// List fetches one page of records from a collection.
func (c *Client) List(ctx context.Context, collection string, opts ListOptions) (*ListResult, error) {
	query := map[string]string{}
	if opts.Page > 0 {
		query["page"] = strconv.Itoa(opts.Page)
	}
	if opts.PerPage > 0 {
		query["perPage"] = strconv.Itoa(opts.PerPage)
	}
	if opts.Sort != "" {
		query["sort"] = opts.Sort
	}
	if opts.Filter != "" {
		query["filter"] = opts.Filter
	}
	if opts.Fields != "" {
		query["fields"] = opts.Fields
	}

	var result ListResult
	resp, err := c.request(ctx).
		SetQueryParams(query).
		SetResult(&result).
		Get(fmt.Sprintf("/api/collections/%s/records", collection))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return &result, nil
}

// First returns the first record matching the filter. A missing record is
// reported as a not-found *Error, mirroring the store's own behaviour.
func (c *Client) First(ctx context.Context, collection string, filter string) (json.RawMessage, error) {
	result, err := c.List(ctx, collection, ListOptions{Page: 1, PerPage: 1, Filter: filter})
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, &Error{Status: 404, Message: "no records found"}
	}
	return result.Items[0], nil
}

// Create inserts a record. The store enforces collection constraints; a
// uniqueness violation comes back as a conflict *Error.
func (c *Client) Create(ctx context.Context, collection string, body any) error {
	resp, err := c.request(ctx).
		SetBody(body).
		Post(fmt.Sprintf("/api/collections/%s/records", collection))
	if err != nil {
		return fmt.Errorf("create %s: %w", collection, err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

// Update patches an existing record by id.
func (c *Client) Update(ctx context.Context, collection string, id string, body any) error {
	resp, err := c.request(ctx).
		SetBody(body).
		Patch(fmt.Sprintf("/api/collections/%s/records/%s", collection, id))
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

// Delete removes a record by id.
func (c *Client) Delete(ctx context.Context, collection string, id string) error {
	resp, err := c.request(ctx).
		Delete(fmt.Sprintf("/api/collections/%s/records/%s", collection, id))
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

// AuthWithPassword authenticates against an auth collection and returns the
// token plus the account record.
func (c *Client) AuthWithPassword(ctx context.Context, collection string, identity string, password string) (*Auth, error) {
	var auth Auth
	resp, err := c.rc.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetBody(map[string]string{"identity": identity, "password": password}).
		SetResult(&auth).
		Post(fmt.Sprintf("/api/collections/%s/auth-with-password", collection))
	if err != nil {
		return nil, fmt.Errorf("auth with password: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	log.WithFields(log.Fields{
		"collection": collection,
		"user":       auth.Record.ID,
	}).Debug("Authenticated with password")
	return &auth, nil
}

// AuthRefresh validates a token and returns a refreshed one along with the
// account record it belongs to. Used to resolve sessions on each request.
func (c *Client) AuthRefresh(ctx context.Context, collection string, token string) (*Auth, error) {
	var auth Auth
	resp, err := c.rc.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetHeader("Authorization", token).
		SetResult(&auth).
		Post(fmt.Sprintf("/api/collections/%s/auth-refresh", collection))
	if err != nil {
		return nil, fmt.Errorf("auth refresh: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return &auth, nil
}

// DecodeItems unmarshals raw list items into a concrete record type,
// skipping records that fail to decode so one malformed row cannot take
// down a whole page.
func DecodeItems[T any](items []json.RawMessage) []T {
	decoded := make([]T, 0, len(items))
	for _, item := range items {
		var value T
		if err := json.Unmarshal(item, &value); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Warn("Skipping undecodable record")
			continue
		}
		decoded = append(decoded, value)
	}
	return decoded
}
