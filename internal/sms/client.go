package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"estatefunnel_backend/platform/config"
	"estatefunnel_backend/platform/logger"
	"estatefunnel_backend/platform/phone"
)

// Client sends SMS through the Celcom Africa bulk SMS gateway.
type Client struct {
	apiURL    string
	apiKey    string
	partnerID string
	shortcode string
	http      *http.Client
	log       *logger.Logger
}

type sendRequest struct {
	APIKey    string `json:"apikey"`
	PartnerID string `json:"partnerID"`
	Message   string `json:"message"`
	Shortcode string `json:"shortcode"`
	Mobile    string `json:"mobile"`
}

type sendResponse struct {
	Responses []struct {
		ResponseCode int    `json:"response-code"`
		Description  string `json:"response-description"`
	} `json:"responses"`
}

func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if !cfg.IsSMSEnabled() {
		return nil
	}

	return &Client{
		apiURL:    cfg.GetSMSAPIURL(),
		apiKey:    cfg.GetSMSAPIKey(),
		partnerID: cfg.GetSMSPartnerID(),
		shortcode: cfg.GetSMSShortcode(),
		http:      &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

// SendMessage delivers a text message to the given phone number.
// The gateway expects numbers without the leading plus.
func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) error {
	if c == nil {
		return fmt.Errorf("sms gateway is not configured")
	}

	normalized := strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+")

	payload := sendRequest{
		APIKey:    c.apiKey,
		PartnerID: c.partnerID,
		Message:   message,
		Shortcode: c.shortcode,
		Mobile:    normalized,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed sendResponse
	if err := json.Unmarshal(data, &parsed); err == nil && len(parsed.Responses) > 0 {
		if code := parsed.Responses[0].ResponseCode; code != 200 {
			return fmt.Errorf("sms gateway rejected message: code %d (%s)", code, parsed.Responses[0].Description)
		}
	}

	c.log.Info("sms sent", "phone", normalized)
	return nil
}
