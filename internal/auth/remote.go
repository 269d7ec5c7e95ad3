package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"greenledger/internal/models"
	"greenledger/internal/util"
)

// RemoteProvider talks to a GoTrue-style identity REST API
type RemoteProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Provider = (*RemoteProvider)(nil)

// NewRemoteProvider creates a client for the identity service at baseURL
func NewRemoteProvider(baseURL, apiKey string, timeout time.Duration) *RemoteProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *RemoteProvider) configured() bool {
	return p != nil && p.baseURL != "" && p.apiKey != ""
}

type remoteUser struct {
	ID           string              `json:"id"`
	Email        string              `json:"email"`
	Phone        string              `json:"phone"`
	UserMetadata models.UserMetadata `json:"user_metadata"`
	CreatedAt    time.Time           `json:"created_at"`
}

// remoteAuthResponse covers both the bare-user and the session shape
type remoteAuthResponse struct {
	remoteUser
	AccessToken string      `json:"access_token"`
	User        *remoteUser `json:"user"`
}

func (r *remoteAuthResponse) toUser() *models.User {
	u := r.remoteUser
	if r.User != nil {
		u = *r.User
	}
	meta := u.UserMetadata
	if meta.Phone == "" {
		meta.Phone = u.Phone
	}
	return models.NewUser(u.ID, u.Email, meta, u.CreatedAt)
}

func (p *RemoteProvider) call(ctx context.Context, path string, body, out any) error {
	if !p.configured() {
		return ErrNotConfigured
	}

	ctx, span := util.StartSpan(ctx, "RemoteProvider.call")
	defer span.End()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return util.RecordError(span, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return util.RecordError(span, fmt.Errorf("identity service unreachable: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return util.RecordError(span, fmt.Errorf("failed to read identity response: %w", err))
	}

	if resp.StatusCode >= 300 {
		var msg struct {
			Msg              string `json:"msg"`
			Message          string `json:"message"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.Unmarshal(raw, &msg)
		text := msg.Msg
		if text == "" {
			text = msg.Message
		}
		if text == "" {
			text = msg.ErrorDescription
		}
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return util.RecordError(span, &RemoteError{Status: resp.StatusCode, Message: text})
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return util.RecordError(span, fmt.Errorf("failed to decode identity response: %w", err))
	}
	return nil
}

// SignUp registers an email/password account
func (p *RemoteProvider) SignUp(ctx context.Context, email, password string, meta models.UserMetadata) (*models.User, error) {
	var resp remoteAuthResponse
	err := p.call(ctx, "/auth/v1/signup", map[string]any{
		"email":    email,
		"password": password,
		"data":     meta,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toUser(), nil
}

// SignIn runs the password grant
func (p *RemoteProvider) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	var resp remoteAuthResponse
	err := p.call(ctx, "/auth/v1/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toUser(), nil
}

// SendOTP asks the service to text a code to an Indian mobile number
func (p *RemoteProvider) SendOTP(ctx context.Context, phone string) error {
	return p.call(ctx, "/auth/v1/otp", map[string]string{"phone": "+91" + phone}, nil)
}

// VerifyOTP exchanges an SMS code for a session
func (p *RemoteProvider) VerifyOTP(ctx context.Context, phone, code string) (*models.User, error) {
	var resp remoteAuthResponse
	err := p.call(ctx, "/auth/v1/verify", map[string]string{
		"type":  "sms",
		"phone": "+91" + phone,
		"token": code,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toUser(), nil
}

// VerifyAadhaar calls the verify_aadhaar RPC
func (p *RemoteProvider) VerifyAadhaar(ctx context.Context, aadhaar string) (*AadhaarResult, error) {
	var resp struct {
		Verified bool   `json:"verified"`
		Name     string `json:"name"`
	}
	if err := p.call(ctx, "/rest/v1/rpc/verify_aadhaar", map[string]string{"aadhaar": aadhaar}, &resp); err != nil {
		return nil, err
	}
	return &AadhaarResult{
		Masked:   MaskAadhaar(aadhaar),
		Verified: resp.Verified,
		Name:     resp.Name,
		Source:   models.SourceRemote,
	}, nil
}

// OAuthURL builds the authorize redirect for an OAuth provider
func (p *RemoteProvider) OAuthURL(ctx context.Context, provider, redirectTo string) (string, error) {
	if !p.configured() {
		return "", ErrNotConfigured
	}
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return p.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}
