package zoomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/amelidiaz19/zoom-api/internal/domain"
)

const (
	// BaseURL is the base URL for Zoom API
	BaseURL = "https://api.zoom.us/v2"
	// AuthURL is the OAuth token endpoint
	AuthURL = "https://zoom.us/oauth/token"
	// DefaultTimeout bounds API calls; recording downloads use DownloadTimeout.
	DefaultTimeout  = 30 * time.Second
	DownloadTimeout = 30 * time.Minute
)

// MeetingTypeScheduled is a one-off meeting with a fixed start time.
const MeetingTypeScheduled = 2

// Config holds the server-to-server OAuth app credentials.
type Config struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	BaseURL      string
	AuthURL      string
	Timeout      time.Duration
}

// CreateMeetingRequest is the body of POST /users/{userId}/meetings.
type CreateMeetingRequest struct {
	Topic     string           `json:"topic"`
	Type      int              `json:"type"`
	Password  string           `json:"password,omitempty"`
	StartTime string           `json:"start_time,omitempty"`
	Agenda    string           `json:"agenda,omitempty"`
	Duration  int              `json:"duration,omitempty"`
	Settings  *MeetingSettings `json:"settings,omitempty"`
}

// MeetingSettings represents the subset of Zoom meeting settings we set.
type MeetingSettings struct {
	HostVideo        bool   `json:"host_video"`
	ParticipantVideo bool   `json:"participant_video"`
	MuteUponEntry    bool   `json:"mute_upon_entry"`
	WaitingRoom      bool   `json:"waiting_room"`
	AutoRecording    string `json:"auto_recording"`
	JoinBeforeHost   bool   `json:"join_before_host"`
	DownloadAccess   bool   `json:"download_access"`
}

// MeetingResponse is the subset of the created meeting we persist.
type MeetingResponse struct {
	ID        int64  `json:"id"`
	HostEmail string `json:"host_email"`
	Topic     string `json:"topic"`
	Agenda    string `json:"agenda"`
	Duration  int    `json:"duration"`
	JoinURL   string `json:"join_url"`
	StartURL  string `json:"start_url"`
	Password  string `json:"password"`
}

// Client is a Zoom REST API client authenticated with account credentials.
type Client struct {
	config      Config
	oauthConfig *clientcredentials.Config
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a Zoom API client.
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.AuthURL == "" {
		config.AuthURL = AuthURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	// Zoom Server-to-Server OAuth uses its own grant type scoped to an account.
	oauthConfig := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     config.AuthURL,
		EndpointParams: url.Values{
			"grant_type": []string{"account_credentials"},
			"account_id": []string{config.AccountID},
		},
		AuthStyle: oauth2.AuthStyleInHeader,
	}
	return &Client{
		config:      config,
		oauthConfig: oauthConfig,
		httpClient:  &http.Client{Timeout: DownloadTimeout},
		logger:      logger,
	}
}

// Token fetches a fresh API access token.
func (c *Client) Token(ctx context.Context) (string, error) {
	tok, err := c.oauthConfig.Token(ctx)
	if err != nil {
		return "", domain.NewExternalError("failed to generate access token", err)
	}
	return tok.AccessToken, nil
}

// CreateMeeting schedules a meeting hosted by userEmail.
func (c *Client) CreateMeeting(ctx context.Context, userEmail string, req *CreateMeetingRequest) (*MeetingResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal meeting request: %w", err)
	}
	path := "/users/" + url.PathEscape(userEmail) + "/meetings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: c.config.Timeout,
		Transport: &oauth2.Transport{
			Base:   http.DefaultTransport,
			Source: c.oauthConfig.TokenSource(ctx),
		},
	}
	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, domain.NewExternalError("failed to create Zoom meeting", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewExternalError("failed to read Zoom response", err)
	}
	c.logger.Info("Zoom API request completed",
		zap.String("method", http.MethodPost),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, domain.NewExternalError("failed to create Zoom meeting", parseErrorResponse(respBody))
	}
	var meeting MeetingResponse
	if err := json.Unmarshal(respBody, &meeting); err != nil {
		return nil, domain.NewExternalError("invalid Zoom meeting response", err)
	}
	return &meeting, nil
}

// Download fetches a cloud recording file using the webhook download token.
func (c *Client) Download(ctx context.Context, downloadURL, token string) ([]byte, error) {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return nil, domain.NewValidationError("invalid recording download url", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewExternalError("failed to download recording", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewExternalError(fmt.Sprintf("failed to download recording: status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewExternalError("failed to read recording", err)
	}
	c.logger.Info("recording downloaded", zap.String("host", u.Host), zap.Int("bytes", len(data)))
	return data, nil
}

func parseErrorResponse(body []byte) error {
	var errResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("zoom API error (code %d): %s", errResp.Code, errResp.Message)
	}
	return fmt.Errorf("zoom API error: %s", string(body))
}
