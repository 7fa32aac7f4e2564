package store

import "trustscore/pkg/platform/sentinel"

// ErrNotFound is returned when a firm has no evaluation yet.
var ErrNotFound = sentinel.ErrNotFound
