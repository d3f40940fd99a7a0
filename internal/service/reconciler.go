package service

import (
	"context"
	"fmt"

	"github.com/timmy/tally/internal/domain"
)

// ResultStore is the keyed result collection the reconciler writes to.
// repository.ResultRepository implements it.
type ResultStore interface {
	FindByKey(ctx context.Context, rec domain.ResultRecord) (id string, found bool, err error)
	Insert(ctx context.Context, rec domain.ResultRecord) (string, error)
	UpdateByID(ctx context.Context, id string, rec domain.ResultRecord) error
}

// Outcome is what reconciliation did with one record.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
)

// Reconciler applies the duplicate/overwrite policy to records keyed by
// their natural key.
//
// Lookup and write are separate statements. Two writers racing on the same
// key can both miss the lookup; the table's unique index then rejects the
// second insert, which the caller records as a row error.
type Reconciler struct {
	store ResultStore
}

// NewReconciler creates a reconciler over store.
func NewReconciler(store ResultStore) *Reconciler {
	return &Reconciler{store: store}
}

// NewPass starts reconciling the records of one job under opts.
func (r *Reconciler) NewPass(opts domain.JobOptions) *Pass {
	p := &Pass{store: r.store, opts: opts}
	if opts.ValidateOnly {
		p.planned = make(map[string]struct{})
	}
	return p
}

// Pass reconciles the records of one job, in file order. It is not safe for
// concurrent use.
type Pass struct {
	store ResultStore
	opts  domain.JobOptions

	// planned holds the natural keys a dry run would have inserted, so a key
	// repeated later in the file is classified like the real run would.
	planned map[string]struct{}
}

// Reconcile inserts rec when its key is new, overwrites the existing record
// when OverwriteExisting is set, and otherwise leaves the store untouched.
// With ValidateOnly the outcome is classified but nothing is written.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - rec: transformed record.
// Returns:
//   - Outcome: inserted, updated or skipped.
//   - error: non-nil if the lookup or the write fails.
func (p *Pass) Reconcile(ctx context.Context, rec domain.ResultRecord) (Outcome, error) {
	id, found, err := p.store.FindByKey(ctx, rec)
	if err != nil {
		return "", err
	}

	var key string
	if p.planned != nil {
		key = fmt.Sprint(rec.NaturalKey())
		if _, ok := p.planned[key]; ok {
			found = true
		}
	}

	switch {
	case !found:
		if p.opts.ValidateOnly {
			p.planned[key] = struct{}{}
		} else if _, err := p.store.Insert(ctx, rec); err != nil {
			return "", err
		}
		return OutcomeInserted, nil

	case p.opts.OverwriteExisting:
		if !p.opts.ValidateOnly {
			if err := p.store.UpdateByID(ctx, id, rec); err != nil {
				return "", fmt.Errorf("overwrite existing record: %w", err)
			}
		}
		return OutcomeUpdated, nil

	default:
		return OutcomeSkipped, nil
	}
}
