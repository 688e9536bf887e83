// Package telephony wraps the carrier's REST API and TwiML response format.
package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Twilio REST client covering what the call flow
// needs: starting call recordings, sending SMS and fetching recorded media.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

// Config configures the carrier client.
type Config struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
	BaseURL     string
	HTTPClient  *http.Client
}

// NewClient creates a carrier client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccountSID == "" {
		return nil, fmt.Errorf("carrier account SID is required")
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("carrier auth token is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.twilio.com/2010-04-01"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.PhoneNumber,
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// StartCallRecording asks the carrier to record both channels of an active
// call, delivering segment callbacks to statusCallback.
func (c *Client) StartCallRecording(ctx context.Context, callSID, statusCallback string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s/Recordings.json", c.baseURL, c.accountSID, callSID)

	data := url.Values{}
	data.Set("RecordingChannels", "dual")
	data.Set("RecordingStatusCallback", statusCallback)
	data.Set("RecordingStatusCallbackMethod", "POST")

	return c.postForm(ctx, endpoint, data, nil)
}

// SendSMS sends a text message from the configured store number and returns
// the message SID.
func (c *Client) SendSMS(ctx context.Context, to, body string) (string, error) {
	if c.fromNumber == "" {
		return "", fmt.Errorf("no outbound phone number configured")
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", c.fromNumber)
	data.Set("Body", body)

	var msg struct {
		SID string `json:"sid"`
	}
	if err := c.postForm(ctx, endpoint, data, &msg); err != nil {
		return "", err
	}
	return msg.SID, nil
}

// DownloadRecording fetches the media behind a recording URL. The carrier
// serves MP3 when ".mp3" is appended to the resource URL.
func (c *Client) DownloadRecording(ctx context.Context, recordingURL string) ([]byte, error) {
	if !strings.HasSuffix(recordingURL, ".mp3") {
		recordingURL += ".mp3"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build recording request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch recording: status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read recording body: %w", err)
	}
	return payload, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, data url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("build carrier request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("carrier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("carrier request: status %d: %s", resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode carrier response: %w", err)
	}
	return nil
}
