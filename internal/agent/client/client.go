// Package client is the agent's HTTP surface towards the RondinLS API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ctellolasalle/RondinLS/internal/agent/session"
	"github.com/ctellolasalle/RondinLS/internal/models"
)

// ErrUnauthorized is returned when the API rejects the bearer token.
// The operator must log in again to resolve it.
var ErrUnauthorized = errors.New("unauthorized")

type APIClient struct {
	baseURL string
	http    *http.Client
	session *session.Session
	logger  *slog.Logger
}

func New(baseURL string, timeout time.Duration, sess *session.Session, logger *slog.Logger) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		session: sess,
		logger:  logger,
	}
}

type loginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login exchanges credentials for a token and the operator blob.
// Storing them is the caller's decision.
func (c *APIClient) Login(ctx context.Context, email, password string) (string, models.User, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return "", models.User{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", models.User{}, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", models.User{}, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return "", models.User{}, fmt.Errorf("login failed: %s", apiError(resp.Body, resp.StatusCode))
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", models.User{}, fmt.Errorf("malformed login response: %w", err)
	}
	return lr.Token, lr.User, nil
}

// scanPayload is the wire form of a submission. Local bookkeeping fields
// (localId, syncStatus) never leave the device, and fecha travels as the
// exact text captured on the device.
type scanPayload struct {
	IDSitio  int      `json:"id_sitio"`
	Fecha    string   `json:"fecha"`
	Latitud  *float64 `json:"latitud,omitempty"`
	Longitud *float64 `json:"longitud,omitempty"`
}

// SubmitScan delivers one queued record. Any non-201 answer is a failure;
// the syncer decides what that means for the record's status.
func (c *APIClient) SubmitScan(ctx context.Context, rec models.ScanRecord) error {
	token, err := c.session.Token()
	if err != nil {
		return err
	}

	body, _ := json.Marshal(scanPayload{
		IDSitio:  rec.SiteID,
		Fecha:    rec.Fecha,
		Latitud:  rec.Latitud,
		Longitud: rec.Longitud,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scans", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("scan submission failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("scan rejected: %s", apiError(resp.Body, resp.StatusCode))
	}
}

// Sites fetches the read-only site catalogue for display.
func (c *APIClient) Sites(ctx context.Context) ([]models.Site, error) {
	var sites []models.Site
	if err := c.getJSON(ctx, "/api/sites", &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// RondaStatus fetches the coverage report for the active round window.
func (c *APIClient) RondaStatus(ctx context.Context) (*models.RondaReport, error) {
	var report models.RondaReport
	if err := c.getJSON(ctx, "/api/ronda/status", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Online probes GET /health with a short deadline. It doubles as the
// syncer's connectivity check: unreachable or unhealthy both mean the
// drain should no-op and leave every record pending.
func (c *APIClient) Online(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (c *APIClient) getJSON(ctx context.Context, path string, out any) error {
	token, err := c.session.Token()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s failed: %s", path, apiError(resp.Body, resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(body io.Reader, status int) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.NewDecoder(body).Decode(&e) == nil && e.Error != "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Error, status)
	}
	return fmt.Sprintf("HTTP %d", status)
}
