package ports

import (
	"context"
	"time"
)

// CompanyNameCache memoizes the normalizer's output per account id so
// repeated runs against the same account don't re-spend on regenerating
// the same CompanyNameSet variants.
type CompanyNameCache interface {
	GetVariants(ctx context.Context, accountID string) ([]string, bool, error)
	SetVariants(ctx context.Context, accountID string, variants []string, ttl time.Duration) error
}
