package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

// New builds a seconds-precision runner. Jobs receive baseCtx so shutdown
// cancels in-flight runs. A nil loc means UTC.
func New(logger *zap.Logger, baseCtx context.Context, loc *time.Location) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			// A slow tick must not stack a second run behind the first.
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// LoadLocation resolves a cron timezone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		if r == nil || r.baseCtx == nil {
			job(context.Background())
			return
		}
		if r.baseCtx.Err() != nil {
			return
		}
		job(r.baseCtx)
	})
}

// Next reports the next activation of an entry, zero if unknown.
func (r *Runner) Next(id cron.EntryID) time.Time {
	if r == nil || r.cron == nil {
		return time.Time{}
	}
	return r.cron.Entry(id).Next
}

func (r *Runner) Start() {
	if r.logger != nil {
		r.logger.Info("cron started")
	}
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	if r.logger != nil {
		r.logger.Info("cron stopped")
	}
}
