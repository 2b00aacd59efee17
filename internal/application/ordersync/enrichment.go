package ordersync

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/ordersync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// RunBudget
// ---------------------------------------------------------------------------

// RunBudget is the token bucket shared by every detail call of one run.
// A nil budget never waits.
type RunBudget struct {
	limiter *rate.Limiter
	calls   atomic.Int64
}

// NewRunBudget creates a budget; a non-positive rate means unlimited
func NewRunBudget(perSecond float64, burst int) *RunBudget {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RunBudget{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a detail call may proceed or ctx is done
func (b *RunBudget) Wait(ctx context.Context) error {
	if b == nil {
		return ctx.Err()
	}
	b.calls.Add(1)
	return b.limiter.Wait(ctx)
}

// Calls returns how many detail calls were admitted or attempted
func (b *RunBudget) Calls() int64 {
	if b == nil {
		return 0
	}
	return b.calls.Load()
}

// ---------------------------------------------------------------------------
// Enricher
// ---------------------------------------------------------------------------

// EnrichedOrder is a summary after detail lookups. DetailErr and ShipmentErr
// record degraded lookups; the order itself is always kept.
type EnrichedOrder struct {
	Order       integration.RawOrder
	Shipment    *integration.RawShipment
	DetailErr   error
	ShipmentErr error
}

// Enricher fetches order and shipment detail for a page of summaries
type Enricher struct {
	client integration.MarketplaceClient
	logger *zap.Logger
}

// NewEnricher creates an enricher
func NewEnricher(client integration.MarketplaceClient, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{client: client, logger: logger}
}

// Enrich looks up detail for every summary concurrently and waits for all of
// them. The output has one entry per summary, in input order.
func (e *Enricher) Enrich(
	ctx context.Context,
	cred integration.Credential,
	summaries []integration.RawOrder,
	budget *RunBudget,
) []EnrichedOrder {
	out := make([]EnrichedOrder, len(summaries))

	var wg sync.WaitGroup
	for i := range summaries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = e.enrichOne(ctx, cred, summaries[i], budget)
		}(i)
	}
	wg.Wait()

	return out
}

func (e *Enricher) enrichOne(
	ctx context.Context,
	cred integration.Credential,
	summary integration.RawOrder,
	budget *RunBudget,
) EnrichedOrder {
	result := EnrichedOrder{Order: summary}

	// The shipment lookup runs alongside the detail lookup when the summary
	// already names the shipment
	var (
		shipWG      sync.WaitGroup
		shipment    *integration.RawShipment
		shipmentErr error
	)
	shipmentStarted := summary.HasShipment()
	if shipmentStarted {
		shipWG.Add(1)
		go func() {
			defer shipWG.Done()
			shipment, shipmentErr = e.fetchShipment(ctx, cred, summary.ShippingID, budget)
		}()
	}

	detail, err := e.fetchOrder(ctx, cred, summary.ID, budget)
	if err != nil {
		result.DetailErr = err
		e.logger.Warn("Order detail unavailable, keeping summary",
			zap.String("order_id", summary.ID),
			zap.Error(err),
		)
	} else if detail != nil {
		result.Order = detail.MergeOver(summary)
	}

	if shipmentStarted {
		shipWG.Wait()
	} else if result.Order.HasShipment() {
		shipment, shipmentErr = e.fetchShipment(ctx, cred, result.Order.ShippingID, budget)
	}

	if shipmentErr != nil {
		result.ShipmentErr = shipmentErr
		e.logger.Warn("Shipment detail unavailable",
			zap.String("order_id", summary.ID),
			zap.String("shipment_id", result.Order.ShippingID),
			zap.Error(shipmentErr),
		)
	}
	result.Shipment = shipment

	return result
}

func (e *Enricher) fetchOrder(ctx context.Context, cred integration.Credential, orderID string, budget *RunBudget) (*integration.RawOrder, error) {
	if err := budget.Wait(ctx); err != nil {
		return nil, err
	}
	return e.client.GetOrder(ctx, cred, orderID)
}

func (e *Enricher) fetchShipment(ctx context.Context, cred integration.Credential, shipmentID string, budget *RunBudget) (*integration.RawShipment, error) {
	if err := budget.Wait(ctx); err != nil {
		return nil, err
	}
	return e.client.GetShipment(ctx, cred, shipmentID)
}
