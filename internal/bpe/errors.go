package bpe

import "errors"

// Error kinds. Concrete errors wrap exactly one of these so callers can
// branch with errors.Is.
var (
	ErrConfig   = errors.New("config error")
	ErrInput    = errors.New("input error")
	ErrTraining = errors.New("training error")
	ErrFormat   = errors.New("format error")
	ErrIO       = errors.New("io error")
	ErrDecode   = errors.New("decode error")
)

// ErrNoMergeAvailable is reported by SelectMerge when no pair occurs more than
// once. The training loop treats it as normal completion.
var ErrNoMergeAvailable = errors.New("no merge available")
