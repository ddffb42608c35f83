package storage

import (
	"context"

	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

// AuditSink receives exactly one AttemptResult per booking task, together
// with the screenshot captured at the end of the attempt. Implementations
// own durable storage of booking codes, balances and screenshot references.
type AuditSink interface {
	Record(ctx context.Context, result *models.AttemptResult, screenshot []byte) error
	Close() error
}
