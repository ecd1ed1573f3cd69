// Package igdb talks to the IGDB v4 API using Twitch client credentials.
package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuelReschke/PlayVerse/internal/pkg/env"
	"github.com/ManuelReschke/PlayVerse/internal/pkg/ratings"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultTokenURL   = "https://id.twitch.tv/oauth2/token"
	defaultAPIBaseURL = "https://api.igdb.com/v4"

	tokenCacheKey = "igdb:access_token"
	// tokenSkew renews the token before Twitch considers it expired.
	tokenSkew = time.Minute
)

var (
	ErrNotConfigured = errors.New("IGDB_CLIENT_ID/IGDB_CLIENT_SECRET are not configured")
	ErrGameNotFound  = errors.New("igdb game not found")
)

// TokenCache shares the app access token between processes.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type Client struct {
	ClientID     string
	ClientSecret string

	TokenURL   string
	APIBaseURL string

	HTTPClient *http.Client
	Tokens     TokenCache

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Game is the subset of an IGDB game record used by the catalog. Raw keeps
// the full JSON object as returned by the API.
type Game struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	AgeRatings []ratings.Row `json:"age_ratings"`

	Raw json.RawMessage `json:"-"`
}

func NewClientFromEnv(tokens TokenCache) *Client {
	return &Client{
		ClientID:     strings.TrimSpace(env.GetEnv("IGDB_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("IGDB_CLIENT_SECRET", "")),
		TokenURL:     strings.TrimSpace(env.GetEnv("IGDB_TOKEN_URL", defaultTokenURL)),
		APIBaseURL:   strings.TrimRight(strings.TrimSpace(env.GetEnv("IGDB_API_BASE_URL", defaultAPIBaseURL)), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		Tokens: tokens,
	}
}

// credentials describes the Twitch client-credentials grant. Twitch only
// accepts the client secret as a form parameter.
func (c *Client) credentials() *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	if c.Tokens != nil {
		if tok, ok, err := c.Tokens.Get(ctx, tokenCacheKey); err == nil && ok && tok != "" {
			c.token = tok
			// The cache TTL already accounts for expiry; re-check it shortly.
			c.tokenExpiry = time.Now().Add(tokenSkew)
			return tok, nil
		}
	}

	if c.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	}
	tok, err := c.credentials().Token(ctx)
	if err != nil {
		return "", fmt.Errorf("twitch token request failed: %w", err)
	}

	ttl := tokenSkew
	if !tok.Expiry.IsZero() && time.Until(tok.Expiry) > 2*tokenSkew {
		ttl = time.Until(tok.Expiry) - tokenSkew
	}
	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(ttl)
	if c.Tokens != nil {
		_ = c.Tokens.Set(ctx, tokenCacheKey, tok.AccessToken, ttl)
	}
	return c.token, nil
}

// query posts an Apicalypse body to endpoint and returns the raw JSON array.
func (c *Client) query(ctx context.Context, endpoint, body string) ([]json.RawMessage, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/"+endpoint, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("igdb %s request failed: status=%d body=%s", endpoint, resp.StatusCode, string(respBody))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(respBody, &items); err != nil {
		return nil, fmt.Errorf("decode igdb %s response: %w", endpoint, err)
	}
	return items, nil
}

// FetchAgeRatings loads the age ratings of one IGDB game.
func (c *Client) FetchAgeRatings(ctx context.Context, igdbID int64) (*Game, error) {
	body := "fields name,age_ratings.category,age_ratings.rating; where id = " + strconv.FormatInt(igdbID, 10) + ";"
	items, err := c.query(ctx, "games", body)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrGameNotFound
	}

	var g Game
	if err := json.Unmarshal(items[0], &g); err != nil {
		return nil, fmt.Errorf("decode igdb game %d: %w", igdbID, err)
	}
	g.Raw = items[0]
	return &g, nil
}

// FindGameID resolves a title to the best matching IGDB id.
func (c *Client) FindGameID(ctx context.Context, title string) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, ErrGameNotFound
	}
	body := fmt.Sprintf("search %s; fields id,name; limit 1;", strconv.Quote(title))
	items, err := c.query(ctx, "games", body)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, ErrGameNotFound
	}

	var g Game
	if err := json.Unmarshal(items[0], &g); err != nil {
		return 0, err
	}
	if g.ID == 0 {
		return 0, ErrGameNotFound
	}
	return g.ID, nil
}
