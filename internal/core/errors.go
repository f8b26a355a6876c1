package core

import "errors"

var (
	// ErrEntityLimit is returned when admission would exceed MaxEntities.
	ErrEntityLimit = errors.New("core: entity limit reached")

	// ErrAlreadyAdmitted is returned when an entity is added twice.
	ErrAlreadyAdmitted = errors.New("core: entity already admitted")

	// ErrNilEntity is returned for nil admissions.
	ErrNilEntity = errors.New("core: nil entity")

	// ErrNotRunning is returned by operations that need the core thread.
	ErrNotRunning = errors.New("core: engine not running")

	// ErrRunning is returned by Step while the core thread owns ticking.
	ErrRunning = errors.New("core: engine is running")
)
