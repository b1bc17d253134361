package eligibility

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPInvestigator calls an external benefits API over HTTP. Requests are
// serialized as JSON to <baseURL>/medical and <baseURL>/pharmacy.
type HTTPInvestigator struct {
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewHTTPInvestigator returns an investigator pointed at the given base URL.
func NewHTTPInvestigator(baseURL string, logger zerolog.Logger) *HTTPInvestigator {
	return &HTTPInvestigator{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

func (h *HTTPInvestigator) InvestigateMedical(ctx context.Context, req Request) (*Result, error) {
	return h.post(ctx, "/medical", req)
}

func (h *HTTPInvestigator) InvestigatePharmacy(ctx context.Context, req Request) (*Result, error) {
	return h.post(ctx, "/pharmacy", req)
}

// Available probes the API health endpoint with a short deadline.
func (h *HTTPInvestigator) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn().Err(err).Msg("benefits api health check failed")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (h *HTTPInvestigator) post(ctx context.Context, path string, reqBody Request) (*Result, error) {
	endpoint := h.baseURL + path

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Endpoint: endpoint,
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	return &result, nil
}
