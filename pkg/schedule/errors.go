package schedule

import "errors"

var (
	// ErrInvalidSpec is returned for cron expressions that fail to parse.
	ErrInvalidSpec = errors.New("schedule: invalid cron expression")

	// ErrDuplicateTask is returned when two tasks share a name.
	ErrDuplicateTask = errors.New("schedule: duplicate task name")

	// ErrUnknownTask is returned by Run for unregistered names.
	ErrUnknownTask = errors.New("schedule: unknown task")

	// ErrLockerRequired is returned when overlap or single-server guards
	// are used without a Locker.
	ErrLockerRequired = errors.New("schedule: locker is required")

	ErrAlreadyStarted = errors.New("schedule: already started")
	ErrNotStarted     = errors.New("schedule: not started")
)
