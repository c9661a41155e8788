package exception

import "github.com/yanun0323/errors"

// General errors
var (
	ErrNilInstance     = errors.New("nil instance")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInternal        = errors.New("internal error")
)

// Configuration errors are fatal at construction time.
var (
	ErrConfig            = errors.New("config: invalid configuration")
	ErrUnknownStrategy   = errors.New("config: strategy not registered")
	ErrDuplicateStrategy = errors.New("config: strategy already registered")
	ErrNoEnabledStrategy = errors.New("config: no enabled strategy found")
)
