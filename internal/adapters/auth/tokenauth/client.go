package tokenauth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"pet-care-sync/internal/platform/httpclient"
)

var (
	ErrNotConfigured = errors.New("tokenauth: client not configured")
	ErrRefreshDenied = errors.New("tokenauth: refresh denied")
)

// Config del cliente de re-autenticación.
// BaseURL y RefreshToken normalmente vienen de env vars.
type Config struct {
	BaseURL      string
	AccountID    string
	RefreshToken string
	Timeout      time.Duration
}

// Client renueva el token de acceso contra el servicio de auth.
// Implementa remote.Authenticator y httpdoc.TokenSource: el sync client
// lee Token() por request, así una re-auth exitosa aplica al retry
// inmediato sin reconstruir nada.
type Client struct {
	http         *httpclient.Client
	accountID    string
	refreshToken string

	mu    sync.RWMutex
	token string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &Client{
		http:         hc,
		accountID:    cfg.AccountID,
		refreshToken: cfg.RefreshToken,
	}, nil
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type refreshRequest struct {
	AccountID    string `json:"account_id"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// Reauthenticate pide un token nuevo. Un fallo del upstream se reporta
// tal cual; el fallback policy decide si reintenta la operación original.
func (c *Client) Reauthenticate(ctx context.Context) error {
	if c == nil || c.http == nil {
		return ErrNotConfigured
	}

	var resp refreshResponse
	err := c.http.DoJSON(ctx, http.MethodPost, "/v1/auth/refresh", nil, refreshRequest{
		AccountID:    c.accountID,
		RefreshToken: c.refreshToken,
	}, &resp)
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
			return ErrRefreshDenied
		}
		return err
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		return ErrRefreshDenied
	}

	c.mu.Lock()
	c.token = resp.AccessToken
	c.mu.Unlock()
	return nil
}
