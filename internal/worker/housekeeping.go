package worker

import (
	"context"
	"time"

	"greenledger/internal/util"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const housekeepingLock = "greenledger:housekeeping"

// PurgeTask deletes one kind of expired record and reports how many went
type PurgeTask struct {
	Kind  string
	Purge func(ctx context.Context) (int, error)
}

// Locker keeps replicas from sweeping at the same time
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Housekeeping periodically removes expired OTPs, sessions and stale
// login flows.
type Housekeeping struct {
	tasks    []PurgeTask
	locker   Locker
	interval time.Duration
	logger   *zap.Logger
}

// NewHousekeeping creates the sweeper. locker may be nil.
func NewHousekeeping(interval time.Duration, locker Locker, tasks ...PurgeTask) *Housekeeping {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Housekeeping{
		tasks:    tasks,
		locker:   locker,
		interval: interval,
		logger:   util.Named("housekeeping"),
	}
}

// RunOnce runs every task and returns the purge count per kind. A failing
// task is logged and does not stop the others.
func (h *Housekeeping) RunOnce(ctx context.Context) map[string]int {
	purged := map[string]int{}

	if h.locker != nil {
		ok, err := h.locker.AcquireLock(ctx, housekeepingLock, h.interval)
		if err != nil {
			h.logger.Error("Failed to acquire housekeeping lock", zap.Error(err))
			return purged
		}
		if !ok {
			h.logger.Debug("Housekeeping running elsewhere, skipping")
			return purged
		}
		defer func() {
			if err := h.locker.ReleaseLock(ctx, housekeepingLock); err != nil {
				h.logger.Warn("Failed to release housekeeping lock", zap.Error(err))
			}
		}()
	}

	for _, task := range h.tasks {
		n, err := task.Purge(ctx)
		if err != nil {
			h.logger.Error("Purge failed", zap.String("kind", task.Kind), zap.Error(err))
		}
		if n > 0 {
			util.HousekeepingPurgedTotal.WithLabelValues(task.Kind).Add(float64(n))
			h.logger.Info("Purged expired records", zap.String("kind", task.Kind), zap.Int("count", n))
		}
		purged[task.Kind] = n
	}
	return purged
}

// Start schedules RunOnce every interval and blocks until ctx is done
func (h *Housekeeping) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(h.interval),
		gocron.NewTask(func() {
			h.RunOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	h.logger.Info("Starting housekeeping", zap.Duration("interval", h.interval))
	scheduler.Start()

	<-ctx.Done()
	return scheduler.Shutdown()
}
