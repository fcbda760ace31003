package userstate

import (
	"context"
	"fmt"

	"github.com/tos-network/rollupsync/blockqueue"
	"github.com/tos-network/rollupsync/event"
	"github.com/tos-network/rollupsync/log"
	"github.com/tos-network/rollupsync/metrics"
	"github.com/tos-network/rollupsync/noteprim"
	"github.com/tos-network/rollupsync/notes"
	"github.com/tos-network/rollupsync/provider"
	"github.com/tos-network/rollupsync/rollupdb"
	"github.com/tos-network/rollupsync/types"
)

// Deps are the shared, read-only collaborators injected into every
// UserState a Factory constructs (spec.md §4.I), grounded on the teacher's
// dependency-injected engine constructors in tos/tosconfig/config.go.
type Deps struct {
	DB         rollupdb.Database
	Provider   provider.RollupProvider
	Algorithms noteprim.NoteAlgorithms
	Logger     log.Logger
	Metrics    *metrics.Registry
}

// Factory builds one UserState per AccountId.
type Factory struct {
	deps Deps
}

func NewFactory(deps Deps) *Factory {
	if deps.Logger == nil {
		deps.Logger = log.New()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}
	if deps.Algorithms == nil {
		deps.Algorithms = noteprim.New()
	}
	return &Factory{deps: deps}
}

// New constructs a UserState for id: it must already have a local user
// record (registration happens outside this package's scope), loads its
// confirmed notes into per-asset NotePickers, and runs the Pending
// Reconciler once before returning.
func (f *Factory) New(ctx context.Context, id types.AccountId) (*UserState, error) {
	user, err := f.deps.DB.GetUser(id)
	if err != nil {
		return nil, fmt.Errorf("userstate: factory: load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("userstate: factory: no local user record for account %s", id.PublicKey.Hex())
	}

	logger := f.deps.Logger.New("account", id.PublicKey.Hex(), "nonce", id.Nonce)
	us := &UserState{
		id:            id,
		user:          user,
		db:            f.deps.DB,
		provider:      f.deps.Provider,
		algo:          f.deps.Algorithms,
		log:           logger,
		metrics:       f.deps.Metrics,
		pickers:       make(map[uint32]*notes.Picker),
		queue:         blockqueue.New(),
		updates:       event.NewFeed[UpdateEvent](),
		blocksApplied: f.deps.Metrics.NewRegisteredCounter("userstate/blocks_applied"),
		decryptTimer:  f.deps.Metrics.NewRegisteredTimer("userstate/decrypt_batch"),
	}

	if err := us.loadNotes(); err != nil {
		return nil, err
	}
	if err := us.resetData(ctx); err != nil {
		return nil, fmt.Errorf("userstate: factory: reconcile pending state: %w", err)
	}
	return us, nil
}
