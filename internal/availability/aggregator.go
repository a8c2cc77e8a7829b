package availability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/teilehaus/searchsync/pkg/httpclient"
)

// InventoryClient answers batch availability queries: available quantity per
// variant id for one sales channel.
type InventoryClient interface {
	BatchAvailability(ctx context.Context, variantIDs []string, channelID string) (map[string]int, error)
}

// HTTPInventoryClient talks to the inventory service's batch availability
// endpoint through a circuit breaker.
type HTTPInventoryClient struct {
	baseURL string
	http    *httpclient.CircuitBreakerClient
}

func NewHTTPInventoryClient(baseURL string, client *httpclient.CircuitBreakerClient) *HTTPInventoryClient {
	return &HTTPInventoryClient{
		baseURL: baseURL,
		http:    client,
	}
}

type batchAvailabilityRequest struct {
	VariantIDs     []string `json:"variant_ids"`
	SalesChannelID string   `json:"sales_channel_id"`
}

type batchAvailabilityResponse struct {
	Availability map[string]int `json:"availability"`
}

func (c *HTTPInventoryClient) BatchAvailability(ctx context.Context, variantIDs []string, channelID string) (map[string]int, error) {
	if len(variantIDs) == 0 {
		return map[string]int{}, nil
	}

	body, err := json.Marshal(batchAvailabilityRequest{
		VariantIDs:     variantIDs,
		SalesChannelID: channelID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal availability request: %w", err)
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/availability/batch", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inventory availability request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "inventory")
	}

	var decoded batchAvailabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode availability response: %w", err)
	}
	if decoded.Availability == nil {
		decoded.Availability = map[string]int{}
	}
	return decoded.Availability, nil
}

// Ping probes the inventory service's health endpoint.
func (c *HTTPInventoryClient) Ping(ctx context.Context) error {
	resp, err := c.http.Get(ctx, c.baseURL+"/health")
	if err != nil {
		return fmt.Errorf("inventory ping: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inventory ping: status %d", resp.StatusCode)
	}
	return nil
}

// Aggregator resolves variant quantities for document building. It never
// fails a sync: when the inventory service is unreachable every requested
// variant resolves to quantity zero, so the affected products index as
// unavailable rather than blocking the batch.
type Aggregator struct {
	inventory InventoryClient
	channelID string
	logger    *slog.Logger
}

func NewAggregator(inventory InventoryClient, channelID string, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		inventory: inventory,
		channelID: channelID,
		logger:    logger,
	}
}

// Resolve returns the available quantity for every requested variant id.
// Variants the inventory service does not report come back as zero, as does
// the whole set on lookup failure.
func (a *Aggregator) Resolve(ctx context.Context, variantIDs []string) map[string]int {
	quantities := make(map[string]int, len(variantIDs))
	for _, id := range variantIDs {
		quantities[id] = 0
	}
	if len(variantIDs) == 0 {
		return quantities
	}

	reported, err := a.inventory.BatchAvailability(ctx, variantIDs, a.channelID)
	if err != nil {
		a.logger.WarnContext(ctx, "availability lookup failed, indexing variants as out of stock",
			slog.Int("variant_count", len(variantIDs)),
			slog.String("error", err.Error()),
		)
		return quantities
	}

	for id, qty := range reported {
		if _, requested := quantities[id]; requested {
			quantities[id] = qty
		}
	}
	return quantities
}
