package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fenilmodi00/ipo-alert-bot/models"
	"github.com/fenilmodi00/ipo-alert-bot/shared"
	"github.com/sirupsen/logrus"
)

const (
	fetchTimeout     = 30 * time.Second
	preflightRetries = 2
)

// APIService wraps the single outbound read call against the ongoing-IPO
// endpoint. Every failure mode degrades to an empty result: a fetch problem
// must never crash the cycle.
type APIService struct {
	OngoingURL    string
	clientFactory *shared.HTTPClientFactory
}

func NewAPIService(ongoingURL string, clientFactory *shared.HTTPClientFactory) *APIService {
	return &APIService{
		OngoingURL:    ongoingURL,
		clientFactory: clientFactory,
	}
}

// FetchOngoingIPOs returns the current IPO list, or nil when the fetch fails
// for any reason (timeout, non-2xx, JSON-shape mismatch). The cause is
// logged; no error is returned to the caller.
func (s *APIService) FetchOngoingIPOs(ctx context.Context) []models.IPORecord {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.OngoingURL, nil)
	if err != nil {
		shared.NewServiceError(shared.ErrorCategoryConfiguration,
			"Failed to build IPO data request", "APIService", "FetchOngoingIPOs", false, err).LogError()
		return nil
	}

	client := s.clientFactory.Client(fetchTimeout)
	resp, err := client.Do(req)
	if err != nil {
		category := shared.ErrorCategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			category = shared.ErrorCategoryTimeout
		}
		shared.NewServiceError(category,
			"Failed to fetch IPO data", "APIService", "FetchOngoingIPOs", true, err).LogError()
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		shared.NewServiceError(shared.ErrorCategoryNetwork,
			"IPO data endpoint returned non-2xx status: "+resp.Status,
			"APIService", "FetchOngoingIPOs", true, nil).LogError()
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		shared.NewServiceError(shared.ErrorCategoryNetwork,
			"Failed to read IPO data response", "APIService", "FetchOngoingIPOs", true, err).LogError()
		return nil
	}

	var payload models.OngoingResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		shared.NewServiceError(shared.ErrorCategoryValidation,
			"Failed to decode IPO data response", "APIService", "FetchOngoingIPOs", false, err).LogError()
		return nil
	}

	logrus.Infof("Successfully fetched IPO data - %d IPOs found", len(payload.Response))
	return payload.Response
}

// TestConnection runs the startup connectivity pre-flight against the IPO
// endpoint, retrying transient failures. A reachable endpoint with an empty
// list still counts as failure, matching the conservative boot check.
func (s *APIService) TestConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.OngoingURL, nil)
	if err != nil {
		logrus.Errorf("Failed to build API test request: %v", err)
		return false
	}

	resp, err := shared.ExecuteWithRetry(s.clientFactory.Client(fetchTimeout), req, preflightRetries)
	if err != nil {
		logrus.Warnf("API connection failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	var payload models.OngoingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logrus.Warnf("API connection test got an undecodable response: %v", err)
		return false
	}

	if len(payload.Response) > 0 {
		logrus.Infof("API connection successful - %d IPOs found", len(payload.Response))
		return true
	}
	logrus.Warn("API connection failed or no data")
	return false
}
