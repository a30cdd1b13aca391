// Package sequence issues invoice numbers. Numbers are strictly
// increasing within their scope, never reused, and survive crashes:
// the last issued value is durably committed before any invoice is
// saved, so a crash between reservation and save produces a gap,
// never a duplicate.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fakturnik/internal/logger"
	"fakturnik/internal/store"
)

// ErrSequenceExhausted is returned when the next counter value would
// no longer fit the configured numeric width. Practically unreachable,
// but a wraparound must be a reported condition, not a silent one.
var ErrSequenceExhausted = errors.New("invoice number sequence exhausted")

// casAttempts bounds the compare-and-swap retry loop so a persistent
// storage fault cannot spin forever.
const casAttempts = 16

// Options configures the number format.
type Options struct {
	// Prefix is an optional leading tag, e.g. "FA".
	Prefix string

	// YearScoped restarts the counter each calendar year and embeds
	// the year in the number ({prefix}-{year}-{counter}).
	YearScoped bool

	// CounterWidth is the zero-padded counter width and the
	// exhaustion bound: the counter may not exceed 10^CounterWidth-1.
	CounterWidth int
}

// Sequencer issues and reports invoice numbers against a durable
// sequence store.
type Sequencer struct {
	store store.SequenceStore
	opts  Options
	now   func() time.Time
	log   zerolog.Logger
}

// New creates a sequencer. The zero Options value means a plain
// unpadded counter with a practically unlimited width.
func New(st store.SequenceStore, opts Options) *Sequencer {
	if opts.CounterWidth <= 0 {
		opts.CounterWidth = 18
	}
	return &Sequencer{
		store: st,
		opts:  opts,
		now:   time.Now,
		log:   logger.WithComponent("sequence"),
	}
}

// PeekNext returns the number the next Reserve would issue, without
// reserving it. Concurrent reservations may make the peeked value
// stale; it is a display affordance, not a promise.
func (s *Sequencer) PeekNext(ctx context.Context) (string, error) {
	last, err := s.store.LastValue(ctx, s.scope())
	if err != nil {
		return "", err
	}
	next := last + 1
	if s.exhausted(next) {
		return "", ErrSequenceExhausted
	}
	return s.format(next), nil
}

// Last returns the last issued number for the current scope, or the
// empty string if none has been issued yet. This backs the "last
// invoice number used" display.
func (s *Sequencer) Last(ctx context.Context) (string, error) {
	last, err := s.store.LastValue(ctx, s.scope())
	if err != nil {
		return "", err
	}
	if last == 0 {
		return "", nil
	}
	return s.format(last), nil
}

// Reserve atomically issues the next unused number. The read-modify-
// write runs as a compare-and-swap loop against the persisted last
// value, so two near-simultaneous calls can never both increment the
// same prior value. A reserved number is committed before it is
// returned and is never handed out again.
func (s *Sequencer) Reserve(ctx context.Context) (string, error) {
	scope := s.scope()
	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		last, err := s.store.LastValue(ctx, scope)
		if err != nil {
			return "", err
		}
		next := last + 1
		if s.exhausted(next) {
			return "", fmt.Errorf("%w: counter width %d", ErrSequenceExhausted, s.opts.CounterWidth)
		}

		err = s.store.CompareAndSwap(ctx, scope, last, next)
		if err == nil {
			number := s.format(next)
			s.log.Debug().
				Str("number", number).
				Int64("counter", next).
				Str("scope", scope).
				Msg("Invoice number reserved")
			return number, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return "", err
		}
		lastErr = err // lost the race, re-read and try again
	}
	return "", fmt.Errorf("could not reserve invoice number after %d attempts: %w", casAttempts, lastErr)
}

// scope names the sequence row the counter lives in. Year-scoped
// numbering keeps one row per calendar year; the old years' rows stay
// behind, which is what retires their numbers forever.
func (s *Sequencer) scope() string {
	if s.opts.YearScoped {
		return fmt.Sprintf("%04d", s.now().Year())
	}
	return "all"
}

func (s *Sequencer) exhausted(next int64) bool {
	if s.opts.CounterWidth >= 19 {
		return next < 0 // int64 overflow guard only
	}
	limit := int64(1)
	for i := 0; i < s.opts.CounterWidth; i++ {
		limit *= 10
	}
	return next >= limit
}

func (s *Sequencer) format(counter int64) string {
	switch {
	case s.opts.YearScoped && s.opts.Prefix != "":
		return fmt.Sprintf("%s-%04d-%0*d", s.opts.Prefix, s.now().Year(), s.opts.CounterWidth, counter)
	case s.opts.YearScoped:
		return fmt.Sprintf("%04d-%0*d", s.now().Year(), s.opts.CounterWidth, counter)
	case s.opts.Prefix != "":
		return fmt.Sprintf("%s-%d", s.opts.Prefix, counter)
	default:
		return fmt.Sprintf("%d", counter)
	}
}
