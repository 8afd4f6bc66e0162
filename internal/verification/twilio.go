package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTwilioBaseURL is the public Twilio Verify API endpoint.
	DefaultTwilioBaseURL = "https://verify.twilio.com"

	statusApproved = "approved"
	channelSMS     = "sms"
	maxBodyBytes   = 1 << 20
)

// Credentials identify the service and account used against Twilio Verify.
type Credentials struct {
	ServiceSID string
	AccountSID string
	AuthToken  string
}

// TwilioClient talks to the Twilio Verify v2 API.
type TwilioClient struct {
	creds   Credentials
	baseURL string
	http    *http.Client
}

// NewTwilioClient builds a Verify client. An empty baseURL selects the public
// API and a non-positive timeout falls back to ten seconds.
func NewTwilioClient(creds Credentials, baseURL string, timeout time.Duration) *TwilioClient {
	if baseURL == "" {
		baseURL = DefaultTwilioBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TwilioClient{
		creds:   creds,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type verifyResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	URL    string `json:"url"`
}

// apiError is the error document Twilio returns with non-2xx responses.
type apiError struct {
	HTTPStatus int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: twilio status %d (code %d): %s", ErrProvider, e.HTTPStatus, e.Code, e.Message)
}

func (e *apiError) Unwrap() error { return ErrProvider }

// Start requests an SMS code for phoneNumber. The verification resource URL
// returned by Twilio is used as the pending reference.
func (c *TwilioClient) Start(ctx context.Context, phoneNumber string) (string, error) {
	form := url.Values{}
	form.Set("To", phoneNumber)
	form.Set("Channel", channelSMS)

	var res verifyResponse
	if err := c.post(ctx, "Verifications", form, &res); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", fmt.Errorf("%w: verification reference missing, retry later", ErrProvider)
	}
	return res.URL, nil
}

// Check submits code for phoneNumber and reports whether Twilio approved it.
func (c *TwilioClient) Check(ctx context.Context, phoneNumber, code string) error {
	form := url.Values{}
	form.Set("To", phoneNumber)
	form.Set("Code", code)

	var res verifyResponse
	if err := c.post(ctx, "VerificationCheck", form, &res); err != nil {
		// Twilio answers 404 once the pending verification expired, was
		// already approved or ran out of attempts.
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrVerificationFailed, apiErr.Message)
		}
		return err
	}
	if res.Status == "" {
		return fmt.Errorf("%w: verification status missing", ErrProvider)
	}
	if res.Status != statusApproved {
		return ErrVerificationFailed
	}
	return nil
}

func (c *TwilioClient) post(ctx context.Context, resource string, form url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/v2/Services/%s/%s", c.baseURL, url.PathEscape(c.creds.ServiceSID), resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.creds.AccountSID, c.creds.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send request: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrProvider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &apiError{HTTPStatus: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response (status %d): %v", ErrProvider, resp.StatusCode, err)
	}
	return nil
}
