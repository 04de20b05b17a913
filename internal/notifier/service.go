package notifier

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"brandops/internal/autoschedule"
	"brandops/internal/eventbus"
	logx "brandops/pkg/logx"
)

const historySize = 50

// Service turns batch-finished events into chat messages.
//
// It is safe for concurrent use.
type Service struct {
	mu     sync.Mutex
	cfg    Config
	sender Sender
	log    logx.Logger
	bus    eventbus.Bus

	unsub func()
	done  chan struct{}

	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem

	now func() time.Time
}

func New(cfg Config, sender Sender, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		sender: sender,
		log:    log,
		bus:    bus,
		dedup:  map[string]time.Time{},
		now:    time.Now,
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply swaps config. Target chat and filters take effect on the next batch;
// the sender is not rebuilt.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

// Start subscribes to batch-finished events. It is a no-op when disabled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.unsub != nil {
		return nil
	}
	if s.cfg.ChatID == 0 {
		return ErrNoChat
	}
	if s.sender == nil || s.bus == nil {
		return ErrDisabled
	}

	ch, unsub := s.bus.Subscribe(64, autoschedule.EventFinished)
	done := make(chan struct{})
	s.unsub, s.done = unsub, done

	go func() {
		defer close(done)
		for e := range ch {
			ev, ok := e.Data.(autoschedule.FinishedEvent)
			if !ok {
				continue
			}
			if err := s.Notify(context.WithoutCancel(ctx), ev); err != nil {
				s.log.Warn("batch summary not sent", logx.String("job", ev.JobID), logx.Err(err))
			}
		}
	}()
	s.log.Info("notifier started", logx.Int64("chat_id", s.cfg.ChatID))
	return nil
}

// Stop unsubscribes and waits for the in-flight send (bounded by ctx).
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	unsub, done := s.unsub, s.done
	s.unsub, s.done = nil, nil
	s.mu.Unlock()
	if unsub == nil {
		return
	}
	unsub()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("notifier stop timed out", logx.Err(ctx.Err()))
	}
}

// Notify sends the summary for one batch, honoring filters and dedup.
func (s *Service) Notify(ctx context.Context, ev autoschedule.FinishedEvent) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if !cfg.Enabled || s.sender == nil {
		return ErrDisabled
	}
	if cfg.OnlyFailures && ev.Unsuccessful() == 0 && ev.Degraded == 0 {
		return nil
	}

	text := FormatSummary(ev)
	if !s.dedupAllow(ev.JobID+"|"+text, cfg.DedupWindow) {
		s.log.Debug("batch summary deduped", logx.String("job", ev.JobID))
		return nil
	}

	err := s.sendWithRetry(ctx, cfg, text)
	item := HistoryItem{At: s.now(), JobID: ev.JobID, Text: text}
	if err != nil {
		item.Error = err.Error()
	}
	s.record(item)
	return err
}

func (s *Service) sendWithRetry(ctx context.Context, cfg Config, text string) error {
	var err error
	delay := cfg.RetryBase
	for attempt := 0; attempt <= cfg.RetryMax; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			delay *= 2
		}
		sendCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		err = s.sender.Send(sendCtx, cfg.ChatID, cfg.ThreadID, text)
		cancel()
		if err == nil {
			return nil
		}
		s.log.Debug("summary send failed", logx.Int("attempt", attempt+1), logx.Err(err))
	}
	return err
}

func (s *Service) dedupAllow(raw string, window time.Duration) bool {
	if window <= 0 {
		return true
	}
	key := dedupKey(raw)
	now := s.now()

	s.dmu.Lock()
	defer s.dmu.Unlock()
	for k, until := range s.dedup {
		if now.After(until) {
			delete(s.dedup, k)
		}
	}
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	s.dedup[key] = now.Add(window)
	return true
}

func dedupKey(raw string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(raw))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) record(item HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()
}

// History returns recent summaries, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

// FormatSummary renders one batch outcome as a short plain-text message.
func FormatSummary(ev autoschedule.FinishedEvent) string {
	var b strings.Builder
	switch {
	case ev.Unsuccessful() == 0 && ev.Degraded == 0:
		b.WriteString("✅ ")
	case ev.Scheduled == 0 && ev.Unsuccessful() > 0:
		b.WriteString("❌ ")
	default:
		b.WriteString("⚠️ ")
	}
	fmt.Fprintf(&b, "Auto-schedule %s: %d scheduled, %d failed", ev.JobID, ev.Scheduled, ev.Failed)
	if len(ev.Failures) > 0 {
		fmt.Fprintf(&b, "\nFailed: %s", strings.Join(ev.Failures, ", "))
	}
	if len(ev.AlreadyScheduled) > 0 {
		fmt.Fprintf(&b, "\nAlready scheduled earlier, not resubmitted: %s", strings.Join(ev.AlreadyScheduled, ", "))
	}
	if ev.Degraded > 0 {
		fmt.Fprintf(&b, "\nStatus not recorded for %d brand(s); check before the next sweep", ev.Degraded)
	}
	if ev.Took > 0 {
		fmt.Fprintf(&b, "\nTook %s", ev.Took.Round(time.Millisecond))
	}
	return b.String()
}
