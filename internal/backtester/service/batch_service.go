package service

import (
	"context"
	"fmt"
	"sync"

	"golang-stock-backtester/internal/backtester/dto"
	"golang-stock-backtester/internal/backtester/strategy"
	"golang-stock-backtester/pkg/logger"
	"golang-stock-backtester/pkg/utils"
)

const defaultBatchWorkers = 4

// BatchService fans (ticker, strategy) combinations out over a bounded
// worker pool. Each unit is an independent single-ticker replay; one failing
// unit never aborts the others.
type BatchService interface {
	Run(ctx context.Context, req dto.BatchRequest) (*dto.BatchResult, error)
}

type batchService struct {
	backtest BacktestService
	log      *logger.Logger
}

// NewBatchService creates the batch evaluator on top of a backtest engine.
func NewBatchService(backtest BacktestService, log *logger.Logger) BatchService {
	return &batchService{backtest: backtest, log: log}
}

func (s *batchService) Run(ctx context.Context, req dto.BatchRequest) (*dto.BatchResult, error) {
	if len(req.Units) == 0 {
		return nil, fmt.Errorf("at least one batch unit is required")
	}
	workers := req.Workers
	if workers <= 0 {
		workers = defaultBatchWorkers
	}
	if workers > len(req.Units) {
		workers = len(req.Units)
	}

	// One registry per run; strategies are rebuilt per unit so units never
	// share state.
	registry := strategy.NewRegistry()

	results := make([]dto.BatchUnitResult, len(req.Units))
	done := make([]bool, len(req.Units))
	jobs := make(chan int)
	var wg sync.WaitGroup

	utils.GoSafe(func() {
		defer close(jobs)
		for i := range req.Units {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	})

	for w := 0; w < workers; w++ {
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.runUnit(ctx, registry, req, req.Units[i])
				done[i] = true
			}
		})
	}
	wg.Wait()

	out := &dto.BatchResult{Partial: ctx.Err() != nil}
	for i := range results {
		if done[i] {
			out.Units = append(out.Units, results[i])
		}
	}
	s.log.Info("Batch run finished",
		logger.IntField("requested", len(req.Units)),
		logger.IntField("completed", len(out.Units)),
		logger.Field("partial", out.Partial))
	return out, nil
}

func (s *batchService) runUnit(ctx context.Context, registry *strategy.Registry, req dto.BatchRequest, unit dto.BatchUnit) dto.BatchUnitResult {
	res := dto.BatchUnitResult{Unit: unit}
	entry, err := registry.NewEntry(unit.EntryName, unit.EntryParams)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	exit, err := registry.NewExit(unit.ExitName, unit.ExitParams)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	result, err := s.backtest.Run(ctx, dto.BacktestRequest{
		Ticker:         unit.Ticker,
		Start:          req.Start,
		End:            req.End,
		InitialCapital: req.InitialCapital,
		LotSize:        req.LotSize,
		Entry:          entry,
		Exit:           exit,
	})
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.Result = result
	return res
}
