package scheduler

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"meetcal/internal/cache"
	appLog "meetcal/internal/log"
)

// Pruner drops cached feeds nobody has requested for a while. The feed TTL
// is tiny, so without it a file-backed cache keeps one file per team ever
// requested.
type Pruner struct {
	cronEngine *cron.Cron
	target     cache.Pruner
	spec       string
	maxAge     time.Duration
	now        func() time.Time
}

// NewPruner returns nil, nil when spec is empty or the storage cannot prune.
func NewPruner(storage cache.Storage, spec string, maxAge time.Duration) (*Pruner, error) {
	if spec == "" {
		return nil, nil
	}
	target, ok := storage.(cache.Pruner)
	if !ok {
		appLog.Info("scheduler: cache storage does not support pruning")
		return nil, nil
	}
	if maxAge <= 0 {
		return nil, errors.New("scheduler: prune max age must be positive")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, err
	}
	return &Pruner{
		cronEngine: cron.New(cron.WithLocation(time.UTC)),
		target:     target,
		spec:       spec,
		maxAge:     maxAge,
		now:        time.Now,
	}, nil
}

func (p *Pruner) Start() error {
	if _, err := p.cronEngine.AddFunc(p.spec, func() { p.RunOnce() }); err != nil {
		return err
	}
	p.cronEngine.Start()
	appLog.Info("scheduler: cache pruning started", "spec", p.spec, "max_age", p.maxAge.String())
	return nil
}

// RunOnce prunes immediately and returns the number of removed entries.
func (p *Pruner) RunOnce() int {
	n, err := p.target.Prune(p.now().Add(-p.maxAge))
	if err != nil {
		appLog.Error("scheduler: cache prune failed", err, "removed", n)
		return n
	}
	if n > 0 {
		appLog.Info("scheduler: cache pruned", "removed", n)
	}
	return n
}

// Stop waits for a running prune to finish.
func (p *Pruner) Stop() {
	ctx := p.cronEngine.Stop()
	<-ctx.Done()
	appLog.Info("scheduler: cache pruning stopped")
}
