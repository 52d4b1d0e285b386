package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// responses are small JSON documents
const maxResponseBytes = 1 << 20

// HTTPConfig configures the HTTP collaborator client.
type HTTPConfig struct {
	BaseURL          string
	Timeout          time.Duration
	BearerToken      string
	DefaultEventName string
	Logger           *logrus.Logger
}

// HTTPClient implements Client against the events service REST API.
type HTTPClient struct {
	baseURL          string
	bearerToken      string
	defaultEventName string
	httpc            *http.Client
	log              *logrus.Logger
}

// NewHTTPClient returns a configured HTTP client. The base URL is cleaned of
// stray whitespace so env var formatting mistakes don't produce invalid
// request URLs.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	base := strings.Join(strings.Fields(cfg.BaseURL), "")
	base = strings.TrimRight(base, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}
	name := strings.TrimSpace(cfg.DefaultEventName)
	if name == "" {
		name = "Yala Event"
	}

	return &HTTPClient{
		baseURL:          base,
		bearerToken:      strings.TrimSpace(cfg.BearerToken),
		defaultEventName: name,
		httpc:            &http.Client{Timeout: timeout},
		log:              log,
	}
}

type verifyResponse struct {
	Success     *bool  `json:"success"`
	UniqueCode  string `json:"uniqueCode"`
	Description string `json:"description"`
	Message     string `json:"message"`
	Error       string `json:"error"`
}

// VerifyEventCode resolves a candidate event code via
// GET verify-funeral-details/{code}.
func (c *HTTPClient) VerifyEventCode(ctx context.Context, code string) (EventResult, error) {
	normalized := NormalizeEventCode(code)
	if normalized == "" {
		return EventResult{Status: StatusNotFound}, nil
	}

	status, data, err := c.do(ctx, http.MethodGet, "verify-funeral-details/"+url.PathEscape(normalized), nil)
	if err != nil {
		return EventResult{}, err
	}
	if status == http.StatusNotFound {
		return EventResult{Status: StatusNotFound}, nil
	}

	var body verifyResponse
	_ = json.Unmarshal(data, &body)

	if status < 200 || status >= 300 {
		// The verification endpoint is not idempotent: repeat attempts for a
		// valid code come back as errors that still identify the event.
		if isRepeatVerification(body) {
			c.log.WithFields(logrus.Fields{
				"code":        normalized,
				"description": body.Description,
			}).Info("treating repeat-verification error as valid event code")
			return EventResult{Status: StatusFound, Event: c.eventFromVerify(normalized, body)}, nil
		}
		if body.Success != nil && !*body.Success {
			return EventResult{Status: StatusNotFound}, nil
		}
		return EventResult{}, fmt.Errorf("backend: verify event code: %s", errorMessage(status, body.Message, body.Error))
	}

	if body.Success == nil || !*body.Success {
		// Some deployments answer 200 success=false on repeats but still
		// include the event fields.
		if body.UniqueCode != "" || body.Description != "" {
			return EventResult{Status: StatusFound, Event: c.eventFromVerify(normalized, body)}, nil
		}
		return EventResult{Status: StatusNotFound}, nil
	}

	return EventResult{Status: StatusFound, Event: c.eventFromVerify(normalized, body)}, nil
}

// RegisterGuest creates a guest profile via POST register-guest. A 409 means
// the phone number is already registered, so the existing profile is looked
// up instead.
func (c *HTTPClient) RegisterGuest(ctx context.Context, fullName, phoneNumber string) (GuestResult, error) {
	payload := map[string]string{
		"fullName":    strings.TrimSpace(fullName),
		"phoneNumber": strings.TrimSpace(phoneNumber),
	}
	status, data, err := c.do(ctx, http.MethodPost, "register-guest", payload)
	if err != nil {
		return GuestResult{}, err
	}
	if status == http.StatusConflict {
		return c.LookupGuest(ctx, phoneNumber)
	}
	if status < 200 || status >= 300 {
		return GuestResult{}, fmt.Errorf("backend: register guest: %s", errorMessageFromBody(status, data))
	}
	return parseGuest(data, StatusCreated)
}

// LookupGuest finds an existing profile via POST check-guest-registration.
func (c *HTTPClient) LookupGuest(ctx context.Context, phoneNumber string) (GuestResult, error) {
	payload := map[string]string{"phoneNumber": strings.TrimSpace(phoneNumber)}
	status, data, err := c.do(ctx, http.MethodPost, "check-guest-registration", payload)
	if err != nil {
		return GuestResult{}, err
	}
	if status == http.StatusNotFound {
		return GuestResult{Status: StatusNotFound}, nil
	}
	if status < 200 || status >= 300 {
		if successIsFalse(data) {
			return GuestResult{Status: StatusNotFound}, nil
		}
		return GuestResult{}, fmt.Errorf("backend: lookup guest: %s", errorMessageFromBody(status, data))
	}
	if successIsFalse(data) {
		return GuestResult{Status: StatusNotFound}, nil
	}
	return parseGuest(data, StatusFound)
}

// FetchBrochure fetches the brochure URL via GET funeral-brochure/{id}.
// Relative URLs are resolved against the configured base.
func (c *HTTPClient) FetchBrochure(ctx context.Context, eventID string) (BrochureResult, error) {
	normalized := strings.TrimSpace(eventID)
	if normalized == "" {
		return BrochureResult{Status: StatusMissing}, nil
	}

	status, data, err := c.do(ctx, http.MethodGet, "funeral-brochure/"+url.PathEscape(normalized), nil)
	if err != nil {
		return BrochureResult{}, err
	}
	if status == http.StatusNotFound {
		return BrochureResult{Status: StatusMissing}, nil
	}
	if status < 200 || status >= 300 {
		if successIsFalse(data) {
			return BrochureResult{Status: StatusMissing}, nil
		}
		return BrochureResult{}, fmt.Errorf("backend: fetch brochure: %s", errorMessageFromBody(status, data))
	}

	var body struct {
		Success     bool   `json:"success"`
		BrochureURL string `json:"brochureUrl"`
	}
	if err := json.Unmarshal(data, &body); err != nil || !body.Success {
		return BrochureResult{Status: StatusMissing}, nil
	}
	mediaURL := strings.TrimSpace(body.BrochureURL)
	if mediaURL == "" {
		return BrochureResult{Status: StatusMissing}, nil
	}
	return BrochureResult{Status: StatusReady, MediaURL: c.resolveMediaURL(mediaURL)}, nil
}

// CreateDonation starts a donation via POST make-donation and returns the
// hosted checkout link. A 404 means the event does not accept donations.
func (c *HTTPClient) CreateDonation(ctx context.Context, eventID, guestID string) (DonationResult, error) {
	payload := map[string]string{
		"funeralUniqueCode": strings.TrimSpace(eventID),
		"guestId":           strings.TrimSpace(guestID),
	}
	status, data, err := c.do(ctx, http.MethodPost, "make-donation", payload)
	if err != nil {
		return DonationResult{}, err
	}
	if status == http.StatusNotFound {
		return DonationResult{Status: StatusUnavailable}, nil
	}
	if status < 200 || status >= 300 {
		return DonationResult{}, fmt.Errorf("backend: create donation: %s", errorMessageFromBody(status, data))
	}

	var body struct {
		URL       string `json:"url"`
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(data, &body); err != nil || strings.TrimSpace(body.URL) == "" {
		return DonationResult{}, errors.New("backend: missing checkout URL in response")
	}
	return DonationResult{
		Status:      StatusReady,
		CheckoutURL: strings.TrimSpace(body.URL),
		Reference:   strings.TrimSpace(body.Reference),
	}, nil
}

// SubmitCondolence sends a condolence via POST condolence-submit.
func (c *HTTPClient) SubmitCondolence(ctx context.Context, eventID, guestID, message string) (CondolenceResult, error) {
	code := strings.TrimSpace(eventID)
	guest := strings.TrimSpace(guestID)
	msg := strings.TrimSpace(message)
	if code == "" || guest == "" || msg == "" {
		return CondolenceResult{}, errors.New("backend: submit condolence: missing required fields")
	}

	payload := map[string]string{
		"funeralUniqueCode": code,
		"guestId":           guest,
		"message":           msg,
	}
	status, data, err := c.do(ctx, http.MethodPost, "condolence-submit", payload)
	if err != nil {
		return CondolenceResult{}, err
	}
	if status < 200 || status >= 300 {
		return CondolenceResult{}, fmt.Errorf("backend: submit condolence: %s", errorMessageFromBody(status, data))
	}
	if successIsFalse(data) {
		// condolences switched off for this event
		return CondolenceResult{Status: StatusUnavailable}, nil
	}

	var body struct {
		Condolence *struct {
			ID string `json:"_id"`
		} `json:"condolence"`
	}
	_ = json.Unmarshal(data, &body)
	res := CondolenceResult{Status: StatusOK}
	if body.Condolence != nil {
		res.ID = body.Condolence.ID
	}
	return res, nil
}

// FetchLocation fetches venue details via GET funeral-location/{id}. The
// location object has no fixed schema, so it is rendered into display lines
// rather than parsed into fields.
func (c *HTTPClient) FetchLocation(ctx context.Context, eventID string) (LocationResult, error) {
	normalized := strings.TrimSpace(eventID)
	if normalized == "" {
		return LocationResult{Status: StatusMissing}, nil
	}

	status, data, err := c.do(ctx, http.MethodGet, "funeral-location/"+url.PathEscape(normalized), nil)
	if err != nil {
		return LocationResult{}, err
	}
	if status == http.StatusNotFound {
		return LocationResult{Status: StatusMissing}, nil
	}
	if status < 200 || status >= 300 {
		if successIsFalse(data) {
			return LocationResult{Status: StatusMissing}, nil
		}
		return LocationResult{}, fmt.Errorf("backend: fetch location: %s", errorMessageFromBody(status, data))
	}

	var body struct {
		Success  bool           `json:"success"`
		Location map[string]any `json:"location"`
	}
	if err := json.Unmarshal(data, &body); err != nil || !body.Success || body.Location == nil {
		return LocationResult{Status: StatusMissing}, nil
	}
	lines := locationLines(body.Location)
	if len(lines) == 0 {
		return LocationResult{Status: StatusMissing}, nil
	}
	return LocationResult{Status: StatusReady, Lines: lines}, nil
}

// NormalizeEventCode canonicalizes a candidate code the way the backend
// stores them.
func NormalizeEventCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	if c.baseURL == "" {
		return 0, nil, errors.New("backend: base URL is not configured")
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("backend: marshal payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), body)
	if err != nil {
		return 0, nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("backend: read response: %w", err)
	}
	return res.StatusCode, data, nil
}

// resolveMediaURL joins backend-relative media paths onto the base URL.
func (c *HTTPClient) resolveMediaURL(raw string) string {
	if !strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "./") {
		return raw
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

func isRepeatVerification(body verifyResponse) bool {
	msg := strings.ToLower(body.Message + " " + body.Error)
	for _, kw := range []string{"already", "verified", "associated", "previously", "exists"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	// an error response that still carries event fields means the code exists
	return body.UniqueCode != "" || body.Description != ""
}

func (c *HTTPClient) eventFromVerify(code string, body verifyResponse) *Event {
	unique := strings.TrimSpace(body.UniqueCode)
	if unique == "" {
		unique = code
	}
	name := strings.TrimSpace(body.Description)
	if name == "" {
		name = c.defaultEventName
		if unique != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(unique)) {
			name = fmt.Sprintf("%s (%s)", name, unique)
		}
	}
	return &Event{Code: unique, Name: name}
}

type guestEnvelope struct {
	Guest *struct {
		ID          string `json:"_id"`
		FullName    string `json:"fullName"`
		PhoneNumber string `json:"phoneNumber"`
	} `json:"guest"`
}

func parseGuest(data []byte, status string) (GuestResult, error) {
	var env guestEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Guest == nil {
		return GuestResult{}, errors.New("backend: missing guest in response")
	}
	id := strings.TrimSpace(env.Guest.ID)
	phone := strings.TrimSpace(env.Guest.PhoneNumber)
	if id == "" || phone == "" {
		return GuestResult{}, errors.New("backend: invalid guest payload")
	}
	name := strings.TrimSpace(env.Guest.FullName)
	if name == "" {
		name = phone
	}
	return GuestResult{
		Status: status,
		Guest:  &Guest{ID: id, FullName: name, PhoneNumber: phone},
	}, nil
}

// locationLines renders the shapeless location payload. Familiar fields get
// friendly labels and lead the list; any other string fields follow in key
// order so new backend fields reach the guest without a bot change.
func locationLines(loc map[string]any) []string {
	str := func(key string) string {
		s, _ := loc[key].(string)
		return strings.TrimSpace(s)
	}

	var lines []string
	if v := str("name"); v != "" {
		lines = append(lines, "📍 "+v)
	}
	if v := str("day"); v != "" {
		lines = append(lines, "Day: "+v)
	}
	if v := str("time"); v != "" {
		lines = append(lines, "Time: "+v)
	}
	if v := str("link"); v != "" {
		lines = append(lines, "Map: "+v)
	}

	known := map[string]bool{"name": true, "day": true, "time": true, "link": true}
	var extras []string
	for k := range loc {
		if !known[k] && str(k) != "" {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	for _, k := range extras {
		lines = append(lines, fmt.Sprintf("%s: %s", k, str(k)))
	}
	return lines
}

func successIsFalse(data []byte) bool {
	var env struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return false
	}
	return env.Success != nil && !*env.Success
}

func errorMessage(status int, candidates ...string) string {
	for _, c := range candidates {
		if s := strings.TrimSpace(c); s != "" {
			return s
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}

func errorMessageFromBody(status int, data []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(data, &env)
	return errorMessage(status, env.Message, env.Error)
}
