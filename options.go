package taskmanager

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// schedulerOptions holds configuration resolved from a list of Option
// values, applied once in NewScheduler.
type schedulerOptions struct {
	blockSize     int
	maxBlocks     int
	scheduleWidth ScheduleWidth
	notify        NotificationFunc
	logger        *logiface.Logger[*stumpy.Event]
	platform      Platform
}

// ScheduleWidth selects the integer width used to store a slot's schedule
// value, trading maximum interval for per-slot memory.
type ScheduleWidth uint8

const (
	// Width32 is the default: schedule values up to 2^32-1.
	Width32 ScheduleWidth = iota
	// Width16 clamps schedule values (post SECONDS-to-MILLIS normalisation)
	// to 2^16-1, to save space on the most constrained platforms.
	Width16
)

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithBlockSize sets the number of slots per pool block. The default is
// platform-appropriate for typical microcontroller memory classes.
func WithBlockSize(n int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.blockSize = n
		return nil
	}}
}

// WithMaxBlocks caps how many blocks the pool may grow to. This is a
// policy limit, not a hard ceiling imposed by the data structure itself.
func WithMaxBlocks(n int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.maxBlocks = n
		return nil
	}}
}

// WithScheduleWidth sets the width used to store schedule values.
func WithScheduleWidth(w ScheduleWidth) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.scheduleWidth = w
		return nil
	}}
}

// WithNotificationHook registers the callback used to surface pool
// exhaustion, lock anomalies, spin diagnostics, and informational
// slot/pool bookkeeping.
func WithNotificationHook(fn NotificationFunc) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.notify = fn
		return nil
	}}
}

// WithLogger overrides the default structured logger.
func WithLogger(l *logiface.Logger[*stumpy.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = l
		return nil
	}}
}

// WithPlatform overrides the default StdPlatform, e.g. with a fake clock
// for tests or a real RTOS-backed implementation.
func WithPlatform(p Platform) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.platform = p
		return nil
	}}
}

// resolveOptions applies Option instances to a schedulerOptions, filling
// in defaults for anything left unset.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		blockSize:     defaultBlockSize,
		maxBlocks:     defaultMaxBlocks,
		scheduleWidth: Width32,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // skip nil options gracefully
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.platform == nil {
		cfg.platform = NewStdPlatform()
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	return cfg, nil
}
