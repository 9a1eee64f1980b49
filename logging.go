package taskmanager

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// defaultLogger wires the package-default structured logger: a leveled
// logiface.Logger backed by stumpy's JSON writer. This runs alongside,
// not instead of, the NotificationFunc hook (see errors.go) — the hook is
// the programmatic contract, this is the ambient operational-visibility
// logging every component of this module carries.
func defaultLogger() *logiface.Logger[*stumpy.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
		logiface.WithLevel[*stumpy.Event](logiface.LevelDebug),
	)
}

// logNotification mirrors every Notification into the configured logger,
// at a level appropriate to its code.
func (s *Scheduler) logNotification(n Notification) {
	logger := s.cfg.logger
	switch n.Code {
	case CodeFull:
		logger.Err().Uint64("task", uint64(n.Task)).Log("slot pool exhausted")
	case CodeLockFailure:
		logger.Warning().Uint64("task", uint64(n.Task)).Log("spin lock invariant violated")
	case CodeHighSpinCount:
		logger.Warning().Uint64("task", uint64(n.Task)).Log("spin lock exceeded high spin count threshold")
	case CodeSlotAllocated:
		logger.Debug().Uint64("task", uint64(n.Task)).Log("slot allocated")
	case CodeSlotFreed:
		logger.Debug().Uint64("task", uint64(n.Task)).Log("slot freed")
	case CodePoolGrew:
		logger.Notice().Log("pool grew by one block")
	}
}
