// Package client holds the JSON-over-HTTP plumbing shared by collaborator clients.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
	apperrors "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HeaderRCUserID carries the caller's chat user id to collaborators
const HeaderRCUserID = "RCUserId"

// maxErrorBody bounds how much of an error response is kept for diagnostics
const maxErrorBody = 512

// Config describes one collaborating service
type Config struct {
	Service        string
	BaseURL        string
	Timeout        time.Duration
	TechnicalToken string // used when the caller carries no token
}

// REST performs authenticated JSON calls. Each call is attempted exactly once.
type REST struct {
	service        string
	baseURL        string
	technicalToken string
	httpClient     *http.Client
}

// NewREST creates a REST client
func NewREST(cfg Config) *REST {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &REST{
		service:        cfg.Service,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		technicalToken: cfg.TechnicalToken,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

// Request describes one call
type Request struct {
	Method   string
	Path     string
	Resource string // named in NOT_FOUND errors
	Headers  map[string]string
	Body     interface{}
}

// Do sends req on behalf of caller and decodes a JSON response into out when out is non-nil
func (r *REST) Do(ctx context.Context, caller *domain.Caller, req Request, out interface{}) error {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", r.service, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, r.baseURL+req.Path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", r.service, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := r.tokenFor(caller); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if caller != nil && caller.RCUserID != "" {
		httpReq.Header.Set(HeaderRCUserID, caller.RCUserID)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return apperrors.UpstreamError(r.service, err)
	}
	defer resp.Body.Close()

	if err := r.checkStatus(resp, req.Resource); err != nil {
		return err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.UpstreamError(r.service, fmt.Errorf("invalid response body: %w", err))
	}
	return nil
}

func (r *REST) tokenFor(caller *domain.Caller) string {
	if caller != nil && caller.AccessToken != "" {
		return caller.AccessToken
	}
	return r.technicalToken
}

func (r *REST) checkStatus(resp *http.Response, resource string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	cause := fmt.Errorf("%s responded %d: %s", r.service, resp.StatusCode, strings.TrimSpace(string(snippet)))

	switch resp.StatusCode {
	case http.StatusForbidden:
		return apperrors.ForbiddenError("Not allowed").WithCause(cause)
	case http.StatusNotFound:
		if resource == "" {
			resource = "Resource"
		}
		return apperrors.NotFoundError(resource).WithCause(cause)
	default:
		return apperrors.UpstreamError(r.service, cause).
			WithDetails(map[string]int{"status": resp.StatusCode})
	}
}
