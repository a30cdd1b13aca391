package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fakturnik/internal/composer"
	"fakturnik/internal/config"
	"fakturnik/internal/directory"
	"fakturnik/internal/ledger"
	"fakturnik/internal/sequence"
	"fakturnik/internal/store"
	"fakturnik/internal/store/sqlite"
)

// engine bundles the wired-up services every command works against.
type engine struct {
	cfg       *config.Config
	store     *sqlite.Store
	directory *directory.Directory
	ledger    *ledger.Ledger
	sequencer *sequence.Sequencer
	composer  *composer.Composer
}

// openEngine loads configuration, opens the database and wires the
// services together. The caller must Close.
func openEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	st, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DBPath, err)
	}

	dir := directory.New(st, directory.Options{
		MatchKey:         cfg.CustomerMatchKey,
		TaxIDLength:      cfg.TaxIDLength,
		NationalIDLength: cfg.NationalIDLength,
	})
	led := ledger.New(cfg.TaxRates)
	seq := sequence.New(st, sequence.Options{
		Prefix:       cfg.InvoicePrefix,
		YearScoped:   cfg.InvoiceYearScoped,
		CounterWidth: cfg.InvoiceCounterWidth,
	})
	comp := composer.New(dir, led, seq, st, st, cfg.Currency)

	return &engine{
		cfg:       cfg,
		store:     st,
		directory: dir,
		ledger:    led,
		sequencer: seq,
		composer:  comp,
	}, nil
}

func (e *engine) Close() error { return e.store.Close() }

// commandContext creates a context with the given timeout that is also
// canceled on SIGINT/SIGTERM, so an interrupted operator never leaves
// a half-done operation running.
func commandContext(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// translateEngineError turns typed engine errors into messages an
// operator can act on.
func translateEngineError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("no such record: %w", err)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("a matching record already exists: %w", err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("the record changed underneath this operation: %w", err)
	case errors.Is(err, store.ErrReferentialIntegrity):
		return fmt.Errorf("cannot delete: invoices still reference this customer: %w", err)
	case errors.Is(err, store.ErrTimeout):
		return fmt.Errorf("the database did not answer in time; try again: %w", err)
	case errors.Is(err, sequence.ErrSequenceExhausted):
		return fmt.Errorf("invoice numbering is exhausted; an administrator must widen the counter: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("operation timed out; try increasing --timeout: %w", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("operation was canceled")
	default:
		return err
	}
}
