package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultZoomTokenURL = "https://zoom.us/oauth/token"
	defaultZoomAPIURL   = "https://api.zoom.us/v2"
	// scheduled meeting
	zoomMeetingTypeScheduled = 2
)

// ZoomClient создаёт встречи через Server-to-Server OAuth приложение Zoom.
type ZoomClient struct {
	accountID    string
	clientID     string
	clientSecret string
	timezone     string
	tokenURL     string
	apiURL       string
	httpClient   *http.Client
}

type ZoomConfig struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	Timezone     string
	// Пустые значения — боевые адреса Zoom.
	TokenURL string
	APIURL   string
}

func NewZoomClient(cfg ZoomConfig) (*ZoomClient, error) {
	if strings.TrimSpace(cfg.AccountID) == "" || strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("zoom credentials are not configured")
	}
	c := &ZoomClient{
		accountID:    cfg.AccountID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		timezone:     cfg.Timezone,
		tokenURL:     cfg.TokenURL,
		apiURL:       strings.TrimRight(cfg.APIURL, "/"),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
	if c.tokenURL == "" {
		c.tokenURL = defaultZoomTokenURL
	}
	if c.apiURL == "" {
		c.apiURL = defaultZoomAPIURL
	}
	if c.timezone == "" {
		c.timezone = "UTC"
	}
	return c, nil
}

type zoomTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type zoomMeetingSettings struct {
	JoinBeforeHost bool `json:"join_before_host"`
	WaitingRoom    bool `json:"waiting_room"`
}

type zoomMeetingRequest struct {
	Topic     string              `json:"topic"`
	Type      int                 `json:"type"`
	StartTime string              `json:"start_time"`
	Duration  int                 `json:"duration"`
	Timezone  string              `json:"timezone"`
	Settings  zoomMeetingSettings `json:"settings"`
}

type zoomMeetingResponse struct {
	ID       json.Number `json:"id"`
	StartURL string      `json:"start_url"`
	JoinURL  string      `json:"join_url"`
}

func (c *ZoomClient) accessToken(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("grant_type", "account_credentials")
	q.Set("account_id", c.accountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("zoom create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("zoom token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("zoom token failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out zoomTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("zoom decode token: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("zoom token response without access_token")
	}
	return out.AccessToken, nil
}

func (c *ZoomClient) CreateMeeting(ctx context.Context, topic string, start time.Time, durationMin int) (Meeting, error) {
	if c == nil {
		return Meeting{}, errors.New("zoom client is nil")
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return Meeting{}, err
	}

	payload := zoomMeetingRequest{
		Topic:     topic,
		Type:      zoomMeetingTypeScheduled,
		StartTime: start.UTC().Format("2006-01-02T15:04:05Z"),
		Duration:  durationMin,
		Timezone:  c.timezone,
		Settings: zoomMeetingSettings{
			JoinBeforeHost: false,
			WaitingRoom:    true,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Meeting{}, fmt.Errorf("zoom marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/users/me/meetings", bytes.NewReader(raw))
	if err != nil {
		return Meeting{}, fmt.Errorf("zoom create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Meeting{}, fmt.Errorf("zoom request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Meeting{}, fmt.Errorf("zoom create meeting failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out zoomMeetingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Meeting{}, fmt.Errorf("zoom decode response: %w", err)
	}
	if out.ID == "" {
		return Meeting{}, errors.New("zoom response without meeting id")
	}
	if _, err := strconv.ParseInt(out.ID.String(), 10, 64); err != nil {
		return Meeting{}, fmt.Errorf("zoom meeting id %q: %w", out.ID, err)
	}

	return Meeting{ID: out.ID.String(), StartURL: out.StartURL, JoinURL: out.JoinURL}, nil
}
