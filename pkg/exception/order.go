package exception

import "github.com/yanun0323/errors"

var (
	ErrOrderInvalidIntent   = errors.New("order: invalid intent")
	ErrOrderGatewayClosed   = errors.New("order: gateway closed")
	ErrOrderRejected        = errors.New("order: rejected")
	ErrOrderNothingToReduce = errors.New("order: reduce-only order has nothing to reduce")
)

var (
	ErrSnapshotEncode = errors.New("persistence: encode snapshot")
	ErrSnapshotDecode = errors.New("persistence: decode snapshot")
	ErrJournalAppend  = errors.New("persistence: journal append")
)
