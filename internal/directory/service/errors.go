package service

import "errors"

var (
	// ErrMissingNaturalKey is recorded for a remote record without its Duo ID.
	ErrMissingNaturalKey = errors.New("remote record has no natural key")

	// ErrUnknownGroup is recorded when a user references a group that has not
	// been synced locally yet.
	ErrUnknownGroup = errors.New("group not found locally")

	// ErrRunInProgress is returned by the scheduler when a run is already active.
	ErrRunInProgress = errors.New("sync run already in progress")
)
