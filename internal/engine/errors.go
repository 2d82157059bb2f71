package engine

import "errors"

var (
	ErrInvalidRules     = errors.New("scheduling rules rejected")
	ErrInvalidDateRange = errors.New("range end must be after range start")
)
