package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/yanqian/agri-market/pkg/errors"
)

// Config wires runtime knobs for the market domain.
type Config struct {
	Loader   LoaderConfig
	Location *time.Location
}

// LabelSource supplies localized category labels.
type LabelSource interface {
	Labels(locale string) map[string]string
}

// StaticLabels is a LabelSource backed by a locale -> category -> label table.
type StaticLabels map[string]map[string]string

// Labels implements LabelSource.
func (s StaticLabels) Labels(locale string) map[string]string {
	return s[strings.ToLower(strings.TrimSpace(locale))]
}

// Service is the contract consumed by the view layer.
type Service struct {
	cfg      Config
	session  *Session
	registry *Registry
	loader   *Loader
	labels   LabelSource
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	statsMu      sync.Mutex
	statsVersion uint64
	statsGen     uint64
	stats        map[string]CommodityStat

	bgMu     sync.Mutex
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
	closed   bool
}

// NewService creates a fresh session and the loader that feeds it.
func NewService(cfg Config, registry *Registry, cascade *Cascade, publisher EventPublisher, recorder Recorder, labels LabelSource, logger *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	session := NewSession()
	bgCtx, bgCancel := context.WithCancel(context.Background())
	svc := &Service{
		cfg:      cfg,
		session:  session,
		registry: registry,
		labels:   labels,
		recorder: recorder,
		logger:   logger.With("component", "market.service", "session_id", session.ID()),
		now:      time.Now,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}
	svc.loader = NewLoader(cfg.Loader, cascade, session, registry, publisher, recorder, logger)
	return svc
}

// ListCategories returns the localized taxonomy with load flags for the current generation.
func (s *Service) ListCategories(locale string) []CategoryView {
	var labels map[string]string
	if s.labels != nil {
		labels = s.labels.Labels(locale)
	}
	cats := s.registry.Localized(locale, labels)
	out := make([]CategoryView, 0, len(cats))
	for _, cat := range cats {
		state := s.session.LoadState(cat.Key)
		out = append(out, CategoryView{
			Category: cat,
			Loaded:   state == StateLoaded,
			Loading:  state == StateLoading,
		})
	}
	return out
}

// Expand loads a category and blocks until every batch has finished.
func (s *Service) Expand(ctx context.Context, category string) (LoadState, error) {
	key := strings.ToLower(strings.TrimSpace(category))
	if _, err := s.loader.Expand(ctx, key); err != nil {
		return s.session.LoadState(key), err
	}
	return s.session.LoadState(key), nil
}

// ExpandAsync starts loading a category in the background and returns
// immediately. The load outlives the request and stops when Close is called.
func (s *Service) ExpandAsync(_ context.Context, category string) (LoadState, error) {
	key := strings.ToLower(strings.TrimSpace(category))
	if _, ok := s.registry.Category(key); !ok {
		return StateNotLoaded, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("unknown category %q", category), nil)
	}
	if state := s.session.LoadState(key); state != StateNotLoaded {
		return state, nil
	}

	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.closed {
		return StateNotLoaded, apperrors.Wrap(apperrors.CodeUnavailable, "market service is shutting down", nil)
	}
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		_, err := s.loader.Expand(s.bgCtx, key)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			s.logger.Info("background category load stopped", "category", key)
		default:
			s.logger.Warn("background category load failed", "category", key, "error", err)
		}
	}()
	return StateLoading, nil
}

// Close cancels background loads and waits for them to return.
func (s *Service) Close() {
	s.bgMu.Lock()
	s.closed = true
	s.bgMu.Unlock()
	s.bgCancel()
	s.bgWG.Wait()
}

// FilteredRecords applies a substring search plus state and category equality
// over the current store. Empty or "all" filters match everything.
func (s *Service) FilteredRecords(search, state, category string) []PriceRecord {
	search = strings.ToLower(strings.TrimSpace(search))
	state = strings.TrimSpace(state)
	category = strings.TrimSpace(category)

	snap := s.session.Snapshot()
	out := make([]PriceRecord, 0, len(snap.Records))
	for _, rec := range snap.Records {
		if search != "" && !matchesSearch(rec, search) {
			continue
		}
		if !matchesFilter(rec.State, state) || !matchesFilter(rec.Category, category) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Stats returns the aggregation for the current store version.
func (s *Service) Stats() map[string]CommodityStat {
	snap := s.session.Snapshot()

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if s.stats == nil || s.statsVersion != snap.Version || s.statsGen != snap.Generation {
		s.stats = Aggregate(snap.Records)
		s.statsVersion = snap.Version
		s.statsGen = snap.Generation
		s.recorder.SetStoreSize(len(snap.Records))
	}
	return s.stats
}

// SortedStats returns Stats ordered by commodity key.
func (s *Service) SortedStats() []CommodityStat {
	stats := s.Stats()
	out := make([]CommodityStat, 0, len(stats))
	for _, stat := range stats {
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Commodity < out[j].Commodity })
	return out
}

// Recommendations ranks the current stats for the current month.
func (s *Service) Recommendations() []Recommendation {
	month := s.now().In(s.cfg.Location).Month()
	return Generate(s.Stats(), month, s.registry.SeasonTag)
}

// UsingFallback drives the "sample data" notice.
func (s *Service) UsingFallback() bool {
	return s.session.UsingFallback()
}

// Status summarizes the session.
func (s *Service) Status() Status {
	snap := s.session.Snapshot()
	return Status{
		SessionID:     s.session.ID(),
		Generation:    snap.Generation,
		UsingFallback: snap.UsingFallback,
		Records:       len(snap.Records),
		Version:       snap.Version,
	}
}

// Refresh starts a new generation. Loads still in flight finish but their results are discarded.
func (s *Service) Refresh() uint64 {
	generation := s.session.Reset()
	s.recorder.SetStoreSize(0)
	s.logger.Info("market session refreshed", "generation", generation)
	return generation
}

func matchesSearch(rec PriceRecord, needle string) bool {
	for _, field := range []string{rec.Commodity, rec.DisplayName, rec.Market, rec.District} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func matchesFilter(value, filter string) bool {
	if filter == "" || strings.EqualFold(filter, "all") {
		return true
	}
	return strings.EqualFold(value, filter)
}
