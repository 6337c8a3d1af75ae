package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"marzadmin/internal/pkg/httpclient"
)

// Client talks to one Marzban panel with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *httpclient.Client
}

// NewClient creates a panel client for the given base URL and token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: httpclient.New().
			WithTimeout(timeout).
			WithBearerToken(token).
			WithInsecureSkipVerify(),
	}
}

// CacheKey identifies this panel for the stats cache.
func (c *Client) CacheKey() string {
	return c.baseURL + "|" + c.token
}

// BaseURL returns the panel's base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticate exchanges admin credentials for a bearer token.
func Authenticate(ctx context.Context, baseURL, username, password string, timeout time.Duration) (string, error) {
	client := httpclient.New().WithTimeout(timeout).WithInsecureSkipVerify()
	resp, err := client.PostForm(ctx, strings.TrimRight(baseURL, "/")+"/api/token", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("panel auth failed: %w", err)
	}
	if !resp.OK() {
		return "", apiError(resp)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("panel auth parse error: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("panel auth: no access_token in response")
	}
	return body.AccessToken, nil
}

// CheckAvailability probes the panel base URL. Any response below 500
// counts as reachable. This is the only call that retries.
func CheckAvailability(ctx context.Context, baseURL string, timeout time.Duration) error {
	client := httpclient.New().WithTimeout(timeout).WithRetry(2).WithInsecureSkipVerify()
	resp, err := client.Get(ctx, strings.TrimRight(baseURL, "/"), nil)
	if err != nil {
		return fmt.Errorf("panel unreachable: %w", err)
	}
	if resp.Status >= 500 {
		return &APIError{Status: resp.Status}
	}
	return nil
}

// GetInbounds returns the panel's inbound catalog as protocol -> tags.
func (c *Client) GetInbounds(ctx context.Context) (map[string][]string, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/api/inbounds", nil)
	if err != nil {
		return nil, fmt.Errorf("get inbounds failed: %w", err)
	}
	if !resp.OK() {
		return nil, apiError(resp)
	}

	var raw map[string][]struct {
		Tag string `json:"tag"`
	}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("parse inbounds: %w", err)
	}

	inbounds := make(map[string][]string, len(raw))
	for protocol, items := range raw {
		tags := make([]string, 0, len(items))
		for _, item := range items {
			if item.Tag != "" {
				tags = append(tags, item.Tag)
			}
		}
		inbounds[protocol] = tags
	}
	return inbounds, nil
}

// GetUser fetches one user by username.
func (c *Client) GetUser(ctx context.Context, username string) (*User, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/api/user/"+username, nil)
	if err != nil {
		return nil, fmt.Errorf("get user failed: %w", err)
	}
	if !resp.OK() {
		return nil, apiError(resp)
	}

	var user User
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return nil, fmt.Errorf("parse user: %w", err)
	}
	return &user, nil
}

// CreateUser creates a user subscribed to every inbound the panel offers,
// with one random proxy identifier per protocol.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) error {
	inbounds, err := c.GetInbounds(ctx)
	if err != nil {
		return err
	}

	proxies := make(map[string]interface{}, len(inbounds))
	for protocol := range inbounds {
		proxies[protocol] = map[string]string{"id": uuid.NewString()}
	}

	body := map[string]interface{}{
		"username":   req.Username,
		"status":     StatusActive,
		"proxies":    proxies,
		"inbounds":   inbounds,
		"data_limit": req.DataLimit,
		"expire":     req.Expire,
		"note":       req.Note,
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/api/user", body)
	if err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}
	if !resp.OK() {
		return apiError(resp)
	}
	return nil
}

// DeleteUser removes a user from the panel.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	resp, err := c.http.Delete(ctx, c.baseURL+"/api/user/"+username)
	if err != nil {
		return fmt.Errorf("delete user failed: %w", err)
	}
	if !resp.OK() {
		return apiError(resp)
	}
	return nil
}

// RevokeSubscription rotates the user's subscription link.
func (c *Client) RevokeSubscription(ctx context.Context, username string) error {
	resp, err := c.http.Post(ctx, c.baseURL+"/api/user/"+username+"/revoke_sub", nil)
	if err != nil {
		return fmt.Errorf("revoke subscription failed: %w", err)
	}
	if !resp.OK() {
		return apiError(resp)
	}
	return nil
}

// UpdateUser performs a read-modify-write cycle: the panel expects the
// full user object on PUT, so the current document is fetched, mutated
// and written back whole.
func (c *Client) UpdateUser(ctx context.Context, username string, mutate func(doc map[string]interface{})) error {
	resp, err := c.http.Get(ctx, c.baseURL+"/api/user/"+username, nil)
	if err != nil {
		return fmt.Errorf("get user failed: %w", err)
	}
	if !resp.OK() {
		return apiError(resp)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return fmt.Errorf("parse user: %w", err)
	}

	mutate(doc)
	normalizeStatus(doc)

	resp, err = c.http.Put(ctx, c.baseURL+"/api/user/"+username, doc)
	if err != nil {
		return fmt.Errorf("update user failed: %w", err)
	}
	if !resp.OK() {
		return apiError(resp)
	}
	return nil
}

// ListUsers fetches one page of users from the pagination endpoint.
func (c *Client) ListUsers(ctx context.Context, offset, limit int) ([]User, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/api/users", map[string]string{
		"offset": strconv.Itoa(offset),
		"limit":  strconv.Itoa(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list users failed: %w", err)
	}
	if !resp.OK() {
		return nil, apiError(resp)
	}

	var body struct {
		Users []User `json:"users"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("parse users page: %w", err)
	}
	return body.Users, nil
}

// SummaryStats fetches the panel's aggregate stats endpoint. Keys missing
// from the response default to zero.
func (c *Client) SummaryStats(ctx context.Context) (Stats, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/api/stats", nil)
	if err != nil {
		return Stats{}, fmt.Errorf("get stats failed: %w", err)
	}
	if !resp.OK() {
		return Stats{}, apiError(resp)
	}

	var stats Stats
	if err := json.Unmarshal(resp.Body, &stats); err != nil {
		return Stats{}, fmt.Errorf("parse stats: %w", err)
	}
	return stats, nil
}

// normalizeStatus keeps the PUT payload acceptable to the panel: the
// update endpoint rejects documents without a recognized status.
func normalizeStatus(doc map[string]interface{}) {
	status, _ := doc["status"].(string)
	switch Status(status) {
	case StatusActive, StatusDisabled, StatusOnHold:
	default:
		doc["status"] = string(StatusActive)
	}
}
