package app

import (
	"context"
	"fmt"
	"time"

	"github.com/harbormail/mailferry/internal/domain"
	"github.com/harbormail/mailferry/internal/gmail"
	"github.com/harbormail/mailferry/internal/metrics"
	"github.com/harbormail/mailferry/internal/ports"
)

// Defaults for the sync loop.
const (
	DefaultPageSize = 100
	DefaultInterval = 5 * time.Minute
)

// Config contains configuration for the sync loop.
type Config struct {
	// Query narrows the listing, e.g. "-label:ferry/synced in:inbox".
	Query string

	// LabelName is applied to every synced message when set. Messages
	// carrying it drop out of a query that excludes the label, which is
	// what makes interrupted passes safe to rerun.
	LabelName string

	// PageSize bounds ids per listing page.
	PageSize int

	// Interval separates sync passes when not running once.
	Interval time.Duration

	// Once runs a single pass and returns.
	Once bool

	// DryRun walks the listing without fetching, storing, or labeling.
	DryRun bool

	// Retention prunes stored messages older than this age after each
	// clean pass. Zero disables pruning.
	Retention time.Duration

	// MaxPages bounds pages per pass. Zero walks the whole listing.
	MaxPages int
}

// MailClient is the slice of the API client the syncer drives.
type MailClient interface {
	ListMessages(ctx context.Context, q gmail.ListQuery) (domain.MessageIDPage, error)
	BatchFetch(ctx context.Context, ids []domain.MessageID) ([]domain.Message, error)
	BatchModify(ctx context.Context, ids []domain.MessageID, addLabelIDs []domain.LabelID) error
}

// Resolver maps a label name to its id.
type Resolver interface {
	Resolve(ctx context.Context, name string) (domain.LabelID, bool)
}

// Syncer drives the fetch pipeline: resume the listing cursor, walk id
// pages, bulk-fetch full documents, hand them to the sink, and mark each
// synced page with the configured label.
type Syncer struct {
	config   Config
	client   MailClient
	resolver Resolver
	cursors  ports.CursorStore
	sink     ports.MessageSink
	logger   ports.Logger
}

// NewSyncer creates a new syncer with the given dependencies.
func NewSyncer(
	config Config,
	client MailClient,
	resolver Resolver,
	cursors ports.CursorStore,
	sink ports.MessageSink,
	logger ports.Logger,
) *Syncer {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	return &Syncer{
		config:   config,
		client:   client,
		resolver: resolver,
		cursors:  cursors,
		sink:     sink,
		logger:   logger,
	}
}

// Run executes sync passes until the context ends. In once mode a single
// pass runs and its error is returned; otherwise failed passes are logged
// and the loop keeps going.
func (s *Syncer) Run(ctx context.Context) error {
	if s.config.Once {
		return s.SyncOnce(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if err := s.SyncOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("sync pass failed", ports.Err(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SyncOnce walks the mailbox listing from the stored cursor to the last
// page. A clean pass clears the cursor so the next pass starts fresh; a
// failed page rewinds it, so the next pass retries that page instead of
// skipping past it.
func (s *Syncer) SyncOnce(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		metrics.SyncDuration.Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.SyncRunsTotal.WithLabelValues(outcome).Inc()
	}()

	cursor, err := s.cursors.Cursor(ctx)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	if cursor != "" {
		s.logger.Info("resuming interrupted pass")
	}

	var labelID domain.LabelID
	if s.config.LabelName != "" {
		id, ok := s.resolver.Resolve(ctx, s.config.LabelName)
		if !ok {
			return &domain.APIError{
				Kind:    domain.KindConfiguration,
				Message: "label " + s.config.LabelName + " not resolved",
				Err:     domain.ErrLabelNotResolved,
			}
		}
		labelID = id
	}

	pages := 0
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.client.ListMessages(ctx, gmail.ListQuery{
			Query:      s.config.Query,
			MaxResults: s.config.PageSize,
			PageToken:  cursor,
		})
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		metrics.PagesListedTotal.Inc()
		pages++

		if len(page.Refs) > 0 {
			n, err := s.syncPage(ctx, page.IDs(), labelID)
			if err != nil {
				// Rewind so the next pass retries this page rather than
				// resuming past it.
				if serr := s.cursors.SetCursor(ctx, cursor); serr != nil {
					s.logger.Error("cursor rewind failed", ports.Err(serr))
				}
				return err
			}
			total += n
		}

		cursor = page.NextPageToken
		if cursor == "" {
			break
		}
		if s.config.MaxPages > 0 && pages >= s.config.MaxPages {
			s.logger.Info("page budget reached, pausing pass",
				ports.Int("pages", pages),
				ports.Int("messages", total))
			return nil
		}
	}

	// The listing ran dry; clear the cursor so the next pass starts over.
	if err := s.cursors.SetCursor(ctx, ""); err != nil {
		return fmt.Errorf("clear cursor: %w", err)
	}

	if s.config.Retention > 0 && !s.config.DryRun {
		s.prune(ctx)
	}

	s.logger.Info("sync pass complete",
		ports.Int("pages", pages),
		ports.Int("messages", total),
		ports.Duration("duration", time.Since(start)))
	return nil
}

// syncPage fetches, stores, and labels one page of ids. Storing happens
// before labeling: if labeling fails the messages are already safe in the
// sink and the next listing picks them up again.
func (s *Syncer) syncPage(ctx context.Context, ids []domain.MessageID, labelID domain.LabelID) (int, error) {
	if s.config.DryRun {
		s.logger.Info("dry run, page skipped", ports.Int("ids", len(ids)))
		return len(ids), nil
	}

	msgs, err := s.client.BatchFetch(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("fetch page: %w", err)
	}

	if err := s.sink.Store(ctx, msgs); err != nil {
		return 0, fmt.Errorf("store page: %w", err)
	}
	metrics.MessagesStoredTotal.Add(float64(len(msgs)))

	if labelID != "" {
		if err := s.client.BatchModify(ctx, ids, []domain.LabelID{labelID}); err != nil {
			return 0, fmt.Errorf("mark page: %w", err)
		}
	}

	s.logger.Debug("page synced", ports.Int("messages", len(msgs)))
	return len(msgs), nil
}

func (s *Syncer) prune(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.Retention)
	n, err := s.sink.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("prune failed", ports.Err(err))
		return
	}
	if n > 0 {
		metrics.MessagesPrunedTotal.Add(float64(n))
		s.logger.Info("pruned stored messages", ports.Int64("removed", n))
	}
}
