package vendorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"smokewatch-backend/config"
	"smokewatch-backend/internal/apperr"
)

const statusSuccess = "success"

// Client is a typed client for the vendor IoT platform. Every call is scoped
// to the caller's tenant via the Tenant-Id header. The vendor is the source
// of truth for binding state but gives no transactional guarantees across
// calls.
type Client struct {
	cfg    *config.VendorConfig
	client *http.Client
}

// NewClient creates a vendor platform client over the given pooled HTTP
// client.
func NewClient(cfg *config.VendorConfig, httpClient *http.Client) *Client {
	return &Client{cfg: cfg, client: httpClient}
}

// TenantID derives the vendor-side tenant identifier from a user id.
func (c *Client) TenantID(userID string) string {
	return c.cfg.TenantPrefix + userID
}

// UserFromTenant reverses TenantID. The second return is false when the
// tenant does not carry the expected prefix.
func (c *Client) UserFromTenant(tenant string) (string, bool) {
	if !strings.HasPrefix(tenant, c.cfg.TenantPrefix) {
		return "", false
	}
	return strings.TrimPrefix(tenant, c.cfg.TenantPrefix), true
}

// LookupByName resolves a device name and product id to the vendor's device
// id within the user's tenant.
func (c *Client) LookupByName(ctx context.Context, userID, productID, name string) (string, error) {
	url := fmt.Sprintf("%s/api-saas/device-instance/%s/%s/nameByDevice", c.cfg.BaseURL, productID, name)

	var resp lookupResponse
	if err := c.do(ctx, http.MethodGet, url, userID, nil, &resp); err != nil {
		return "", err
	}
	if resp.Message != statusSuccess || len(resp.Result) == 0 {
		return "", apperr.NotFound("DEVICE_NOT_FOUND")
	}
	return resp.Result[0].ID, nil
}

// Bind attaches the device to the user at the vendor.
func (c *Client) Bind(ctx context.Context, userID, deviceID string) error {
	return c.bindOp(ctx, userID, deviceID, "bind")
}

// Unbind detaches the device from the user at the vendor.
func (c *Client) Unbind(ctx context.Context, userID, deviceID string) error {
	return c.bindOp(ctx, userID, deviceID, "unbind")
}

func (c *Client) bindOp(ctx context.Context, userID, deviceID, op string) error {
	url := fmt.Sprintf("%s/api-saas/sys/user/device/%s", c.cfg.BaseURL, op)
	tenant := c.TenantID(userID)
	body := bindRequest{DeviceID: deviceID, UserID: tenant, TenantID: tenant}

	var resp statusResponse
	if err := c.do(ctx, http.MethodPost, url, userID, body, &resp); err != nil {
		return err
	}
	if resp.Message != statusSuccess {
		return apperr.Upstream("VENDOR_"+strings.ToUpper(op)+"_FAILED",
			fmt.Errorf("vendor %s returned %q for device %s", op, resp.Message, deviceID))
	}
	return nil
}

// Detail fetches the vendor's view of the device, including its reported
// state.
func (c *Client) Detail(ctx context.Context, userID, deviceID string) (*DeviceDetail, error) {
	url := fmt.Sprintf("%s/api-saas/device-instance/%s/detail", c.cfg.BaseURL, deviceID)

	var resp detailResponse
	if err := c.do(ctx, http.MethodGet, url, userID, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Message != statusSuccess {
		return nil, apperr.Upstream("VENDOR_DETAIL_FAILED",
			fmt.Errorf("vendor detail returned %q for device %s", resp.Message, deviceID))
	}
	return &DeviceDetail{
		ID:    resp.Result.ID,
		Name:  resp.Result.Name,
		State: resp.Result.State.Value,
	}, nil
}

// Events returns the device's most recent event log entries.
func (c *Client) Events(ctx context.Context, userID, deviceID string) ([]LogEntry, error) {
	return c.logs(ctx, userID, deviceID, logTerm{
		Type: "or", Value: "event", TermType: "eq", Column: "type",
	})
}

// Properties returns the device's most recent property reports.
func (c *Client) Properties(ctx context.Context, userID, deviceID string) ([]LogEntry, error) {
	return c.logs(ctx, userID, deviceID, logTerm{
		Type: "and", Value: "reportProperty", TermType: "eq", Column: "type",
	})
}

func (c *Client) logs(ctx context.Context, userID, deviceID string, term logTerm) ([]LogEntry, error) {
	url := fmt.Sprintf("%s/api-saas/device-instance/%s/logs", c.cfg.BaseURL, deviceID)
	body := logQuery{PageIndex: 0, PageSize: c.cfg.LogPageSize, Terms: []logTerm{term}}

	var resp logsResponse
	if err := c.do(ctx, http.MethodPost, url, userID, body, &resp); err != nil {
		return nil, err
	}
	if resp.Message != statusSuccess {
		return nil, apperr.Upstream("VENDOR_LOGS_FAILED",
			fmt.Errorf("vendor logs returned %q for device %s", resp.Message, deviceID))
	}
	return resp.Result.Data, nil
}

// do issues one tenant-scoped request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, url, userID string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Tenant-Id", c.TenantID(userID))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.Upstream("VENDOR_UNREACHABLE", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.Upstream("VENDOR_UNREACHABLE",
			fmt.Errorf("received non-200 status code: %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal vendor response: %w", err)
	}
	return nil
}
