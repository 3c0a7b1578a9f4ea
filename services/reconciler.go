package services

import (
	"context"
	"errors"

	"github.com/Ibino273/raspi-moto-scraper/models"
	"github.com/Ibino273/raspi-moto-scraper/storage"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

// ErrMissingNaturalKey is returned for listings whose URL yields no key.
var ErrMissingNaturalKey = errors.New("listing has no natural key")

// Outcome tells which persistence call a reconcile issued.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeInserted
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	default:
		return "none"
	}
}

// Reconciler upserts listings by natural key.
type Reconciler struct {
	store  storage.ListingStore
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// NewReconciler creates a Reconciler; every store call goes through retry.
func NewReconciler(store storage.ListingStore, retry *utils.RetryConfig, logger *utils.Logger) *Reconciler {
	return &Reconciler{store: store, retry: retry, logger: logger}
}

// Reconcile inserts l when its key is unknown and otherwise sends a partial
// update with the fields present in l. Fields absent from l keep their
// stored value.
func (r *Reconciler) Reconcile(ctx context.Context, l *models.Listing) (Outcome, error) {
	if l.NaturalKey == "" {
		return OutcomeNone, ErrMissingNaturalKey
	}

	existing, err := utils.Retry(ctx, r.retry, "find "+l.NaturalKey, func() (*models.Listing, error) {
		found, err := r.store.FindByNaturalKey(ctx, l.NaturalKey)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return found, err
	})
	if err != nil {
		return OutcomeNone, err
	}

	if existing != nil {
		err = r.retry.Do(ctx, "update "+l.NaturalKey, func() error {
			return r.store.Update(ctx, l.NaturalKey, l.Patch())
		})
		if err != nil {
			return OutcomeNone, err
		}
		r.logger.Debug("[reconciler] Updated %s", l.NaturalKey)
		return OutcomeUpdated, nil
	}

	err = r.retry.Do(ctx, "insert "+l.NaturalKey, func() error {
		return r.store.Insert(ctx, l)
	})
	if err != nil {
		return OutcomeNone, err
	}
	r.logger.Debug("[reconciler] Inserted %s", l.NaturalKey)
	return OutcomeInserted, nil
}
