package dispatchsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"smokewatch-backend/config"
	"smokewatch-backend/internal/apperr"
)

// Gateway triggers a real-world emergency dispatch to a physical address.
type Gateway interface {
	RequestDispatch(ctx context.Context, address string) error
}

// dispatchRequest is the request body of the dispatch endpoint.
type dispatchRequest struct {
	Address string `json:"address"`
	APIKey  string `json:"apiKey"`
}

// EFlaraGateway submits dispatch requests to the eFlara service.
type EFlaraGateway struct {
	cfg    *config.DispatchConfig
	client *http.Client
}

// NewEFlaraGateway creates a dispatch gateway over the given pooled HTTP
// client.
func NewEFlaraGateway(cfg *config.DispatchConfig, httpClient *http.Client) *EFlaraGateway {
	return &EFlaraGateway{cfg: cfg, client: httpClient}
}

// RequestDispatch asks the service to dispatch to the given address.
func (g *EFlaraGateway) RequestDispatch(ctx context.Context, address string) error {
	body := dispatchRequest{Address: address, APIKey: g.cfg.APIKey}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return apperr.Upstream("DISPATCH_UNREACHABLE", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Upstream("DISPATCH_FAILED",
			fmt.Errorf("dispatch endpoint returned status %d", resp.StatusCode))
	}
	return nil
}
