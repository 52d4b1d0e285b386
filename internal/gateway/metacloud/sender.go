// Package metacloud sends messages through the Meta WhatsApp Cloud API.
package metacloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v20.0"
	maxResponseBytes  = 64 << 10
)

// Config configures the Cloud API sender.
type Config struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	// BaseURL overrides the Graph API host, for tests.
	BaseURL string
	Timeout time.Duration
	Logger  *logrus.Logger
}

// Sender implements gateway.Sender against
// POST /{version}/{phone-number-id}/messages.
type Sender struct {
	endpoint    string
	accessToken string
	httpc       *http.Client
	log         *logrus.Logger
}

// APIError is a non-2xx answer from the Graph API. The body is kept verbatim
// because Meta's error envelope carries the actionable detail.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("metacloud: graph api status %d: %s", e.StatusCode, e.Body)
}

// NewSender validates the credentials and returns a ready sender.
func NewSender(cfg Config) (*Sender, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	phoneID := strings.TrimSpace(cfg.PhoneNumberID)
	if token == "" {
		return nil, errors.New("metacloud: access token is required")
	}
	if phoneID == "" {
		return nil, errors.New("metacloud: phone number id is required")
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}

	return &Sender{
		endpoint:    fmt.Sprintf("%s/%s/%s/messages", base, version, phoneID),
		accessToken: token,
		httpc:       &http.Client{Timeout: timeout},
		log:         log,
	}, nil
}

type textPayload struct {
	Body string `json:"body"`
}

type documentPayload struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type outboundMessage struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textPayload     `json:"text,omitempty"`
	Document         *documentPayload `json:"document,omitempty"`
}

// SendText sends a plain text message to a wa_id.
func (s *Sender) SendText(ctx context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("metacloud: recipient is required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("metacloud: text body is empty")
	}
	return s.post(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &textPayload{Body: body},
	})
}

// SendDocument sends a document by public link. The Cloud API fetches the
// link itself, so it must be an absolute http(s) URL.
func (s *Sender) SendDocument(ctx context.Context, to, link, caption, filename string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("metacloud: recipient is required")
	}
	if !strings.HasPrefix(link, "https://") && !strings.HasPrefix(link, "http://") {
		return fmt.Errorf("metacloud: document link must be an http(s) URL, got %q", link)
	}
	return s.post(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "document",
		Document:         &documentPayload{Link: link, Caption: caption, Filename: filename},
	})
}

func (s *Sender) post(ctx context.Context, msg outboundMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("metacloud: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("metacloud: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	res, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("metacloud: send %s to %s: %w", msg.Type, msg.To, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("metacloud: read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var ack struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &ack); err == nil && len(ack.Messages) > 0 {
		s.log.WithFields(logrus.Fields{
			"to":    msg.To,
			"type":  msg.Type,
			"wamid": ack.Messages[0].ID,
		}).Debug("message accepted by cloud api")
	}
	return nil
}
