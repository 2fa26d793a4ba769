// Package whatsapp talks to an Evolution-API style messaging gateway: outbound
// sends, instance management and inbound webhook parsing.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// Client is a thin HTTP client for the gateway. Credentials are passed per call
// because every tenant brings its own base URL, API key and instance.
type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// APIError is a non-2xx gateway response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway HTTP %d: %s", e.Status, e.Body)
}

// Instance is one gateway instance as reported by fetchInstances.
type Instance struct {
	Name  string `json:"name"`
	State string `json:"state"` // raw gateway state ("open", "connecting", "close")
}

// ConnectInfo carries what the user needs to pair a phone.
type ConnectInfo struct {
	PairingCode string `json:"pairing_code,omitempty"`
	Code        string `json:"code,omitempty"`
	QRCode      string `json:"qrcode,omitempty"` // data URI
	State       string `json:"state,omitempty"`
}

// MapConnectionState maps a raw gateway state onto the dashboard status set.
func MapConnectionState(state string) string {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "open":
		return store.InstanceConnected
	case "connecting":
		return store.InstanceConnecting
	default:
		return store.InstanceDisconnected
	}
}

// SendText posts a text message. It is not retried.
func (c *Client) SendText(ctx context.Context, creds store.MessagingConfig, number, text string) error {
	body := map[string]any{"number": number, "text": text}
	return c.do(ctx, creds, http.MethodPost, "/message/sendText/"+url.PathEscape(creds.InstanceName), body, nil)
}

// FetchInstances lists the instances visible to the API key.
// Both the v1 ({instance:{instanceName,status}}) and v2 ({name,connectionStatus}) shapes are accepted.
func (c *Client) FetchInstances(ctx context.Context, creds store.MessagingConfig) ([]Instance, error) {
	var raw []struct {
		Name             string `json:"name"`
		ConnectionStatus string `json:"connectionStatus"`
		Instance         *struct {
			InstanceName string `json:"instanceName"`
			Status       string `json:"status"`
			State        string `json:"state"`
		} `json:"instance"`
	}
	if err := c.do(ctx, creds, http.MethodGet, "/instance/fetchInstances", nil, &raw); err != nil {
		return nil, err
	}

	out := make([]Instance, 0, len(raw))
	for _, r := range raw {
		inst := Instance{Name: r.Name, State: r.ConnectionStatus}
		if r.Instance != nil {
			if inst.Name == "" {
				inst.Name = r.Instance.InstanceName
			}
			if inst.State == "" {
				inst.State = r.Instance.Status
			}
			if inst.State == "" {
				inst.State = r.Instance.State
			}
		}
		out = append(out, inst)
	}
	return out, nil
}

// InstanceStatus returns the mapped status of creds.InstanceName.
// An instance missing from the list reports disconnected.
func (c *Client) InstanceStatus(ctx context.Context, creds store.MessagingConfig) (string, error) {
	instances, err := c.FetchInstances(ctx, creds)
	if err != nil {
		return "", err
	}
	for _, inst := range instances {
		if inst.Name == creds.InstanceName {
			return MapConnectionState(inst.State), nil
		}
	}
	return store.InstanceDisconnected, nil
}

// CreateInstance provisions creds.InstanceName on the gateway.
func (c *Client) CreateInstance(ctx context.Context, creds store.MessagingConfig) (*ConnectInfo, error) {
	body := map[string]any{
		"instanceName": creds.InstanceName,
		"qrcode":       true,
		"integration":  "WHATSAPP-BAILEYS",
	}
	var resp struct {
		Instance struct {
			Status string `json:"status"`
		} `json:"instance"`
		QRCode *connectResponse `json:"qrcode"`
	}
	if err := c.do(ctx, creds, http.MethodPost, "/instance/create", body, &resp); err != nil {
		return nil, err
	}
	info := &ConnectInfo{State: resp.Instance.Status}
	if resp.QRCode != nil {
		resp.QRCode.fill(info)
	}
	return info, nil
}

type connectResponse struct {
	PairingCode string `json:"pairingCode"`
	Code        string `json:"code"`
	Base64      string `json:"base64"`
}

func (r *connectResponse) fill(info *ConnectInfo) {
	info.PairingCode = r.PairingCode
	info.Code = r.Code
	info.QRCode = r.Base64
}

// Connect asks the gateway for a fresh QR / pairing code.
func (c *Client) Connect(ctx context.Context, creds store.MessagingConfig) (*ConnectInfo, error) {
	var resp connectResponse
	if err := c.do(ctx, creds, http.MethodGet, "/instance/connect/"+url.PathEscape(creds.InstanceName), nil, &resp); err != nil {
		return nil, err
	}
	info := &ConnectInfo{}
	resp.fill(info)
	return info, nil
}

// Logout disconnects the phone from the instance.
func (c *Client) Logout(ctx context.Context, creds store.MessagingConfig) error {
	return c.do(ctx, creds, http.MethodDelete, "/instance/logout/"+url.PathEscape(creds.InstanceName), nil, nil)
}

// SetWebhook points the instance's webhook at webhookURL for message upserts.
func (c *Client) SetWebhook(ctx context.Context, creds store.MessagingConfig, webhookURL string) error {
	body := map[string]any{
		"webhook": map[string]any{
			"enabled":  true,
			"url":      webhookURL,
			"byEvents": false,
			"events":   []string{"MESSAGES_UPSERT"},
		},
	}
	return c.do(ctx, creds, http.MethodPost, "/webhook/set/"+url.PathEscape(creds.InstanceName), body, nil)
}

func (c *Client) do(ctx context.Context, creds store.MessagingConfig, method, path string, body, out any) error {
	if !creds.Complete() {
		return fmt.Errorf("messaging gateway credentials are incomplete")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal gateway request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(creds.BaseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("create gateway request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", creds.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
