package normalizer

import (
	"context"
	"time"

	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/model"
	"github.com/benefis-partners/prospect-pipeline/modules/pipeline/ports"
)

// Normalizer is the contract both implementations satisfy.
type Normalizer interface {
	Normalize(ctx context.Context, account model.AccountRef) (*model.CompanyNameSet, error)
}

// cacheTTL is how long a generated CompanyNameSet stays valid for an
// account. Company names change rarely enough that a long TTL is safe;
// this is not meant to survive a deliberate re-normalization request.
const cacheTTL = 30 * 24 * time.Hour

// WithFallback tries the generative normalizer first and falls back to the
// deterministic one on any error, per spec.md §4.B: "Applied when the
// generative call is unavailable or fails." Results are cached by account
// id, single-assignment: once an account has a cached set, WithFallback
// returns it without calling either implementation again.
type WithFallback struct {
	generative    *Generative
	deterministic *Deterministic
	cache         ports.CompanyNameCache
}

// NewWithFallback composes a Generative and Deterministic normalizer
// behind a CompanyNameCache.
func NewWithFallback(generative *Generative, deterministic *Deterministic, cache ports.CompanyNameCache) *WithFallback {
	return &WithFallback{generative: generative, deterministic: deterministic, cache: cache}
}

// Normalize returns the cached set for account.ID if present; otherwise
// tries the generative normalizer, falls back to the deterministic one on
// failure, and caches whichever succeeded.
func (w *WithFallback) Normalize(ctx context.Context, account model.AccountRef) (*model.CompanyNameSet, error) {
	if cached, ok, err := w.cache.GetVariants(ctx, account.ID); err == nil && ok {
		return model.NewCompanyNameSet(account.Name, cached...)
	}

	set, err := w.generative.Normalize(ctx, account)
	if err != nil {
		set, err = w.deterministic.Normalize(ctx, account)
		if err != nil {
			return nil, err
		}
	}

	// Cache errors are not fatal to this call; a cache outage just means
	// every run re-normalizes until it recovers.
	_ = w.cache.SetVariants(ctx, account.ID, set.Variants(), cacheTTL)

	return set, nil
}
