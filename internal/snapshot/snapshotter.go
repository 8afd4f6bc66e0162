package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/isoapp/iso_server/internal/market"
)

const (
	// DefaultInterval matches the historical one-minute save cadence.
	DefaultInterval = 60 * time.Second
	saveTimeout     = 30 * time.Second
)

// Load restores state from sink. A missing snapshot yields empty state; an
// unreadable or corrupt snapshot is logged and also yields empty state so the
// process can keep serving.
func Load(ctx context.Context, sink Sink, log *slog.Logger) market.Data {
	doc, err := sink.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			log.InfoContext(ctx, "No snapshot found, starting empty",
				slog.String("sink", sink.String()))
		} else {
			log.ErrorContext(ctx, "Failed to read snapshot, starting empty",
				slog.String("sink", sink.String()),
				slog.Any("error", fmt.Errorf("%w: %v", ErrPersistence, err)))
		}
		return market.Data{}
	}

	data, err := Decode(doc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to decode snapshot, starting empty",
			slog.String("sink", sink.String()),
			slog.Int("bytes", len(doc)),
			slog.Any("error", err))
		return market.Data{}
	}

	log.InfoContext(ctx, "Snapshot loaded",
		slog.String("sink", sink.String()),
		slog.Int("users", len(data.Users)),
		slog.Int("posts", len(data.Feed)))
	return data
}

// Snapshotter periodically writes the store to a sink.
type Snapshotter struct {
	ctx      context.Context
	store    *market.Store
	sink     Sink
	interval time.Duration
	cron     *cron.Cron
	log      *slog.Logger

	// saveMu keeps a slow save from interleaving with the next tick.
	saveMu sync.Mutex
}

// New builds a snapshotter. A non-positive interval selects DefaultInterval.
func New(ctx context.Context, store *market.Store, sink Sink, interval time.Duration, log *slog.Logger) *Snapshotter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Snapshotter{
		ctx:      ctx,
		store:    store,
		sink:     sink,
		interval: interval,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		log:      log,
	}
}

// Spec is the cron schedule the snapshotter registers.
func (s *Snapshotter) Spec() string {
	return "@every " + s.interval.String()
}

// Start schedules periodic saves.
func (s *Snapshotter) Start() error {
	if _, err := s.cron.AddFunc(s.Spec(), s.tick); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for a running tick to finish and writes a final snapshot.
func (s *Snapshotter) Stop(ctx context.Context) error {
	<-s.cron.Stop().Done()
	return s.Save(ctx)
}

// Save copies the store and writes it to the sink. The store lock is only
// held while copying.
func (s *Snapshotter) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	data := s.store.View()
	doc, err := Encode(data)
	if err != nil {
		return err
	}
	if err := s.sink.Save(ctx, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.log.InfoContext(ctx, "Snapshot saved",
		slog.String("sink", s.sink.String()),
		slog.Int("users", len(data.Users)),
		slog.Int("posts", len(data.Feed)),
		slog.Int("bytes", len(doc)))
	return nil
}

func (s *Snapshotter) tick() {
	ctx, cancel := context.WithTimeout(s.ctx, saveTimeout)
	defer cancel()

	if err := s.Save(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to save snapshot",
			slog.String("sink", s.sink.String()),
			slog.Any("error", err))
	}
}
