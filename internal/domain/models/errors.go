package models

import "errors"

// ErrInvalidValue marks malformed input rejected synchronously at ingestion
// time: negative or non-finite tick values, a backfill interval that is not a
// positive multiple of the flush interval, or a malformed event label.
var ErrInvalidValue = errors.New("invalid value")
