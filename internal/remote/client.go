// Package remote implements the Remote Client: serializes payloads and
// talks to the ingestion API's sync/ping/state/event/register endpoints.
//
// The HTTP client uses an explicit http.Transport with a TLS 1.2 floor,
// bounded connection pooling, and per-phase dial/handshake/response
// timeouts, rather than the zero-value http.Client.
package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/canaryhq/canary-agent/internal/metrics"
)

// defaultTimeout is used for ping/event/register calls.
const defaultTimeout = 30 * time.Second

// syncTimeout is used for sync and state-upload calls, raised above the
// default to avoid "sync thrashing" against a slow server.
const syncTimeout = 600 * time.Second

// Config supplies the connection parameters the client needs. Implemented
// by internal/settings.Settings.
type Config interface {
	APIBase() string
	APIVersion() int
	APIKey() string
	ServerID() string
}

// Client is the Remote Client. It holds one persistent, thread-safe
// *http.Client shared across every call.
type Client struct {
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.RemoteMetrics
}

// New builds a Client with connection pooling and timeouts appropriate for
// a long-lived agent process.
func New(logger *slog.Logger, m *metrics.RemoteMetrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		http:    &http.Client{Transport: transport},
		logger:  logger,
		metrics: m,
	}
}

func (c *Client) endpoint(cfg Config, path string) string {
	return fmt.Sprintf("%s/v%d/%s", cfg.APIBase(), cfg.APIVersion(), path)
}

// request performs one JSON HTTP call and decodes the response body (on
// success) or converts the failure to *ApiError (on any problem: status 0
// for local transport failure, >=400 for server-rejected requests).
func (c *Client) request(ctx context.Context, operation, method, url, apiKey string, timeout time.Duration, body interface{}) (map[string]interface{}, error) {
	start := time.Now()
	result, err := c.doRequest(ctx, method, url, apiKey, timeout, body)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.Observe(operation, outcome, time.Since(start).Seconds())
	return result, err
}

func (c *Client) doRequest(ctx context.Context, method, url, apiKey string, timeout time.Duration, body interface{}) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("remote: encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	req.SetBasicAuth("api", apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("making API request", "url", url, "method", method)

	resp, err := c.http.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, transportError(fmt.Sprintf("timed out reading from %s", url), err)
		}
		return nil, transportError(fmt.Sprintf("could not connect to %s", url), err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr != nil && decodeErr != io.EOF {
		return nil, &ApiError{StatusCode: 0, Name: "invalid JSON response"}
	}

	if resp.StatusCode >= 400 {
		name, _ := decoded["error_name"].(string)
		if name == "" {
			name = "Unknown"
		}
		message, _ := decoded["error_message"].(string)
		return nil, &ApiError{StatusCode: resp.StatusCode, Name: name, Message: message}
	}

	return decoded, nil
}

// Ping reports whether the server is reachable and responds "pong".
func (c *Client) Ping(ctx context.Context, cfg Config) (bool, error) {
	url := c.endpoint(cfg, fmt.Sprintf("server/%s/ping", cfg.ServerID()))
	resp, err := c.request(ctx, "ping", http.MethodGet, url, cfg.APIKey(), defaultTimeout, nil)
	if err != nil {
		return false, err
	}
	return resp["ping"] == "pong", nil
}

// Sync uploads a full per-plugin snapshot batch (the initial-sync / SYNC
// re-baseline case) and returns the settings patch the server sent back.
func (c *Client) Sync(ctx context.Context, hostname, agentVersion string, states map[string]interface{}, cfg Config) (map[string]interface{}, error) {
	url := c.endpoint(cfg, fmt.Sprintf("server/%s/sync", cfg.ServerID()))
	body := map[string]interface{}{
		"hostname":      hostname,
		"agent_version": agentVersion,
		"states":        states,
	}
	resp, err := c.request(ctx, "sync", http.MethodPost, url, cfg.APIKey(), syncTimeout, body)
	if err != nil {
		return nil, err
	}
	return settingsOf(resp)
}

// UploadChanges uploads one tick's batch of per-plugin StatusPayloads and
// returns the settings patch the server sent back.
func (c *Client) UploadChanges(ctx context.Context, batch Batch, cfg Config) (map[string]interface{}, error) {
	url := c.endpoint(cfg, fmt.Sprintf("server/%s/state", cfg.ServerID()))
	resp, err := c.request(ctx, "upload_changes", http.MethodPost, url, cfg.APIKey(), syncTimeout, batch.wireEntries())
	if err != nil {
		return nil, err
	}
	return settingsOf(resp)
}

// CreateEvent reports a single out-of-band event and returns whether it
// was recorded and, if so, the server-assigned event id. A client-generated
// correlation id rides along on every request so a duplicate delivery
// (e.g. a retried POST the server actually received) can be deduplicated
// server-side without the agent needing to track what was acknowledged.
func (c *Client) CreateEvent(ctx context.Context, cfg Config, pluginName, eventType, description string, data interface{}) (created bool, eventID string, err error) {
	url := c.endpoint(cfg, fmt.Sprintf("server/%s/event", cfg.ServerID()))
	body := map[string]interface{}{
		"plugin":         pluginName,
		"type":           eventType,
		"description":    description,
		"data":           data,
		"correlation_id": uuid.NewString(),
	}
	resp, err := c.request(ctx, "create_event", http.MethodPost, url, cfg.APIKey(), defaultTimeout, body)
	if err != nil {
		return false, "", err
	}
	created, _ = resp["created"].(bool)
	eventID, _ = resp["event_id"].(string)
	return created, eventID, nil
}

// Register enrolls this host with the API using the given signup key and
// returns the assigned server id.
func (c *Client) Register(ctx context.Context, apiKey, hostname, agentVersion string, cfg Config) (string, error) {
	url := c.endpoint(cfg, "servers")
	body := map[string]interface{}{
		"hostname":      hostname,
		"agent_version": agentVersion,
	}
	resp, err := c.request(ctx, "register", http.MethodPost, url, apiKey, defaultTimeout, body)
	if err != nil {
		return "", err
	}
	serverID, _ := resp["server_id"].(string)
	return serverID, nil
}

// Shutdown sends the best-effort, no-retry shutdown notification.
func (c *Client) Shutdown(ctx context.Context, cfg Config) error {
	url := c.endpoint(cfg, fmt.Sprintf("server/%s/shutdown", cfg.ServerID()))
	_, err := c.request(ctx, "shutdown", http.MethodPost, url, cfg.APIKey(), defaultTimeout, map[string]interface{}{})
	return err
}

func settingsOf(resp map[string]interface{}) (map[string]interface{}, error) {
	patch, ok := resp["settings"].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}, nil
	}
	return patch, nil
}
