// Package processor sweeps for closed-won deals that never produced
// an outcome event. The deal-closed webhook is the primary path; the
// sweep catches deliveries that were lost or arrived before the
// organization enrolled.
package processor

import (
	"context"
	"time"

	"github.com/smallbiznis/dealbill/internal/clock"
	"github.com/smallbiznis/dealbill/internal/config"
	oppdomain "github.com/smallbiznis/dealbill/internal/opportunity/domain"
	eventdomain "github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// lookback bounds the sweep window so a fresh deployment does not
// retro-bill ancient history.
const lookback = 90 * 24 * time.Hour

const runTimeout = 2 * time.Minute

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Config   config.Config
	OppRepo  oppdomain.Repository
	Recorder eventdomain.Recorder
}

type Processor struct {
	log      *zap.Logger
	clock    clock.Clock
	cfg      config.Config
	oppRepo  oppdomain.Repository
	recorder eventdomain.Recorder
}

func New(p Params) *Processor {
	return &Processor{
		log:      p.Log.Named("processor"),
		clock:    p.Clock,
		cfg:      p.Config,
		oppRepo:  p.OppRepo,
		recorder: p.Recorder,
	}
}

// RunResult summarizes one sweep.
type RunResult struct {
	Scanned  int   `json:"scanned"`
	Recorded int   `json:"recorded"`
	Skipped  int   `json:"skipped"`
	Fees     int64 `json:"fees"`
}

// RunOnce records outcome events for unprocessed closed-won deals, at
// most BatchSize per run. Per-deal failures are logged and skipped so
// one bad row cannot stall the sweep.
func (p *Processor) RunOnce(ctx context.Context) (RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	batch := p.cfg.ProcessorBatchSize
	if batch <= 0 {
		batch = 100
	}

	since := p.clock.Now().Add(-lookback)
	deals, err := p.oppRepo.ListClosedWonWithoutEvent(ctx, since, batch)
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{Scanned: len(deals)}
	for _, deal := range deals {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		event, err := p.recorder.RecordDealOutcome(ctx, deal.OrgID, deal.ID)
		if err != nil {
			p.log.Warn("sweep failed to record deal",
				zap.Int64("opportunity_id", deal.ID.Int64()),
				zap.Error(err),
			)
			result.Skipped++
			continue
		}
		if event == nil {
			result.Skipped++
			continue
		}
		result.Recorded++
		result.Fees += event.FeeAmount
	}

	if result.Scanned > 0 {
		p.log.Info("outcome billing sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("recorded", result.Recorded),
			zap.Int("skipped", result.Skipped),
			zap.Int64("fees", result.Fees),
		)
	}

	return result, nil
}

// RunForever loops RunOnce on the configured interval until ctx ends.
func (p *Processor) RunForever(ctx context.Context) {
	interval := p.cfg.ProcessorInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("sweep run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
