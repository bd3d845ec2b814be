package service

import (
	"context"
	"encoding/json"
	"fmt"

	"golang-stock-backtester/internal/backtester/repository"
	"golang-stock-backtester/internal/backtester/strategy"
	"golang-stock-backtester/internal/domain"
	"golang-stock-backtester/internal/entity"
	"golang-stock-backtester/internal/indicator"
	signalcfg "golang-stock-backtester/internal/signal/config"
	"golang-stock-backtester/pkg/common"
	"golang-stock-backtester/pkg/logger"
	"golang-stock-backtester/pkg/redis"
	"golang-stock-backtester/pkg/telegram"
	"golang-stock-backtester/pkg/utils"

	goRedis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// SignalService runs the daily live evaluation: the same strategies the
// backtester replays, applied to today's snapshot for every watched ticker.
// BUY opens a tracked position, EXIT closes it, REDUCE halves it; every
// decision is persisted, published to the signal stream and sent to Telegram.
type SignalService interface {
	Start(ctx context.Context) error
	Stop()
	EvaluateAll(ctx context.Context)
}

type signalService struct {
	cfg           *signalcfg.Config
	provider      repository.SnapshotProvider
	positionsRepo repository.StockPositionsRepository
	signalRepo    repository.StockSignalRepository
	quoteRepo     repository.QuoteRepository
	entry         strategy.EntryStrategy
	exit          strategy.ExitStrategy
	redisClient   *redis.Client
	notifier      telegram.Notifier
	logger        *logger.Logger
	cron          *cron.Cron
}

// NewSignalService builds the service, resolving strategies through a fresh
// registry so configuration errors surface here and not mid-schedule.
func NewSignalService(
	cfg *signalcfg.Config,
	provider repository.SnapshotProvider,
	positionsRepo repository.StockPositionsRepository,
	signalRepo repository.StockSignalRepository,
	quoteRepo repository.QuoteRepository,
	redisClient *redis.Client,
	notifier telegram.Notifier,
	log *logger.Logger,
) (SignalService, error) {
	registry := strategy.NewRegistry()
	entryParams := map[string]interface{}{}
	if cfg.Signal.EntryThreshold > 0 {
		entryParams["threshold"] = cfg.Signal.EntryThreshold
	}
	entry, err := registry.NewEntry(cfg.Signal.EntryStrategy, entryParams)
	if err != nil {
		return nil, fmt.Errorf("failed to build entry strategy: %w", err)
	}
	exit, err := registry.NewExit(cfg.Signal.ExitStrategy, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build exit strategy: %w", err)
	}
	return &signalService{
		cfg:           cfg,
		provider:      provider,
		positionsRepo: positionsRepo,
		signalRepo:    signalRepo,
		quoteRepo:     quoteRepo,
		entry:         entry,
		exit:          exit,
		redisClient:   redisClient,
		notifier:      notifier,
		logger:        log,
		cron:          cron.New(),
	}, nil
}

// Start schedules the daily evaluation and begins the cron loop.
func (s *signalService) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Signal.Schedule, func() {
		s.EvaluateAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid signal schedule %q: %w", s.cfg.Signal.Schedule, err)
	}
	s.cron.Start()
	s.logger.Info("Signal service started",
		logger.StringField("schedule", s.cfg.Signal.Schedule),
		logger.IntField("tickers", len(s.cfg.Signal.Tickers)))
	return nil
}

// Stop halts the cron loop, letting a running evaluation finish.
func (s *signalService) Stop() {
	<-s.cron.Stop().Done()
}

// EvaluateAll runs one evaluation pass over every watched ticker. A failing
// ticker is logged and skipped; the pass always covers the rest.
func (s *signalService) EvaluateAll(ctx context.Context) {
	asOf := utils.DateOnly(utils.TimeNowJST())

	active, err := s.positionsRepo.GetActive(ctx)
	if err != nil {
		s.logger.Error("Failed to load active positions", logger.ErrorField(err))
		return
	}
	held := make(map[string]*entity.StockPosition, len(active))
	for i := range active {
		held[active[i].Ticker] = &active[i]
	}

	for _, ticker := range s.cfg.Signal.Tickers {
		snap, err := s.provider.Get(ctx, ticker, asOf)
		if err != nil {
			s.logger.Error("Failed to build snapshot", logger.ErrorField(err), logger.StringField("ticker", ticker))
			continue
		}
		if row, ok := held[ticker]; ok {
			s.evaluateHolding(ctx, row, snap)
		} else {
			s.evaluateFlat(ctx, ticker, snap)
		}
	}
}

func (s *signalService) evaluateFlat(ctx context.Context, ticker string, snap *domain.Snapshot) {
	sig := s.entry.DecideEntry(snap)
	if sig.Action != domain.ActionBuy {
		return
	}
	price := s.currentPrice(ctx, ticker, snap)

	lot := snap.Meta.LotSize
	if lot <= 0 {
		lot = 100
	}
	score := sig.Confidence * 100
	if sig.Score != nil {
		score = sig.Score.Composite
	}
	entryATR := indicator.ATR(snap.Prices, strategy.DefaultExitConfig().ATRPeriod)
	row := &entity.StockPosition{IsActive: true}
	row.FromDomain(domain.NewPosition(ticker, snap.LastClose(), snap.AsOf, score, lot, entryATR))
	if err := s.positionsRepo.Create(ctx, row); err != nil {
		s.logger.Error("Failed to persist position", logger.ErrorField(err), logger.StringField("ticker", ticker))
		return
	}

	signalRow := &entity.StockSignal{
		Ticker:         ticker,
		Action:         string(sig.Action),
		Confidence:     sig.Confidence,
		CompositeScore: score,
	}
	if sig.Score != nil {
		if data, err := json.Marshal(sig.Score.Components); err == nil {
			signalRow.Data = data
		}
	}
	s.record(ctx, signalRow, sig.Reasons)
	s.notify(telegram.FormatEntrySignal(ticker, sig, price))
}

func (s *signalService) evaluateHolding(ctx context.Context, row *entity.StockPosition, snap *domain.Snapshot) {
	pos := row.ToDomain()
	pos.UpdatePeak(snap.LastClose())
	if err := pos.Validate(); err != nil {
		s.logger.Error("Position failed validation", logger.ErrorField(err), logger.StringField("ticker", pos.Ticker))
		return
	}

	sig := s.exit.EvaluateExit(pos, snap)
	if sig.TightenStop {
		pos.StopTightened = true
	}

	switch sig.Action {
	case domain.ActionExit:
		if err := s.positionsRepo.Close(ctx, row.ID); err != nil {
			s.logger.Error("Failed to close position", logger.ErrorField(err), logger.StringField("ticker", pos.Ticker))
			return
		}
	case domain.ActionReduce:
		pos.Quantity /= 2
		fallthrough
	default:
		row.FromDomain(pos)
		if err := s.positionsRepo.Update(ctx, row); err != nil {
			s.logger.Error("Failed to update position", logger.ErrorField(err), logger.StringField("ticker", pos.Ticker))
			return
		}
	}
	if sig.Action == domain.ActionHold {
		return
	}

	s.record(ctx, &entity.StockSignal{
		Ticker:  pos.Ticker,
		Action:  string(sig.Action),
		Urgency: string(sig.Urgency),
		Layer:   sig.Layer,
	}, sig.Reasons)
	s.notify(telegram.FormatExitSignal(pos.Ticker, sig, pos, s.currentPrice(ctx, pos.Ticker, snap), snap.AsOf))
}

// currentPrice prefers an intraday quote for the notification text and falls
// back to the snapshot close. Decisions themselves use the close only.
func (s *signalService) currentPrice(ctx context.Context, ticker string, snap *domain.Snapshot) float64 {
	if s.quoteRepo != nil {
		if quote, err := s.quoteRepo.GetQuote(ctx, ticker); err == nil && quote.Price > 0 {
			return quote.Price
		}
	}
	return snap.LastClose()
}

// record persists the signal and publishes it to the trade-signal stream.
func (s *signalService) record(ctx context.Context, row *entity.StockSignal, reasons []string) {
	row.Reasons = reasons
	if err := s.signalRepo.Create(ctx, row); err != nil {
		s.logger.Error("Failed to persist signal", logger.ErrorField(err), logger.StringField("ticker", row.Ticker))
	}

	payload, err := json.Marshal(row)
	if err != nil {
		s.logger.Error("Failed to encode signal payload", logger.ErrorField(err))
		return
	}
	if err := s.redisClient.XAdd(ctx, &goRedis.XAddArgs{
		Stream: common.RedisStreamTradeSignal,
		Values: map[string]interface{}{"payload": payload},
	}).Err(); err != nil {
		s.logger.Error("Failed to publish signal", logger.ErrorField(err), logger.StringField("ticker", row.Ticker))
	}
}

func (s *signalService) notify(text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendMessage(text); err != nil {
		s.logger.Error("Failed to send Telegram notification", logger.ErrorField(err))
	}
}
