package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"mathtikz/internal/services"
)

const (
	probeTimeout   = 10 * time.Second
	probeBodyLimit = 64 << 10
)

// ProbeResult summarizes the upstream model listing call.
type ProbeResult struct {
	Status int    `json:"status"`
	OK     bool   `json:"ok"`
	Body   string `json:"body"`
}

// Probe checks that the credential is present and the provider answers. It is
// a single attempt bounded by a short timeout.
func (c *Client) Probe(ctx context.Context) (ProbeResult, error) {
	if c.cfg.APIKey == "" {
		return ProbeResult{}, services.Wrap(services.ErrConfiguration, "llm", "probe", "Chave não configurada", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.provider.ModelsEndpoint(c.cfg.BaseURL), nil)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("llm probe: new request: %w", err)
	}
	c.provider.Authorize(req, c.cfg.APIKey)
	c.setAttributionHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ProbeResult{}, services.Wrap(services.ErrNetwork, "llm", "probe", err.Error(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		return ProbeResult{}, services.Wrap(services.ErrNetwork, "llm", "probe", err.Error(), err)
	}
	return ProbeResult{
		Status: resp.StatusCode,
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Body:   Truncate(string(body), previewLimit),
	}, nil
}
