package record

import "errors"

var (
	// ErrEndOfFile the scan has passed the last record
	ErrEndOfFile = errors.New("end of relation file")
	// ErrInvalidRecord RID does not address a stored record
	ErrInvalidRecord = errors.New("invalid record id")
	// ErrRecordTooLarge record is empty or does not fit a single page
	ErrRecordTooLarge = errors.New("record larger than a page")
)
