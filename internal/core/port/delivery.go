package port

import (
	"context"

	"github.com/marketgrid/credential-service/internal/core/domain"
)

// DeliveryService hands generated recovery artifacts to the outbound
// notification pipeline. Calls are fire-and-forget from the flow's
// perspective: a delivery failure is logged by the implementation and must
// not change the caller-visible outcome, so request responses never leak
// whether a message actually went out.
type DeliveryService interface {
	SendRecoveryEmail(ctx context.Context, address string, rawToken string, event domain.RecoveryRequestedEvent) error
	SendRecoverySMS(ctx context.Context, phone string, code string, event domain.RecoveryRequestedEvent) error
}
