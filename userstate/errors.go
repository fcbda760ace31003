package userstate

import "errors"

// ErrInconsistentInteractionResult signals a protocol violation: a
// DEFI_DEPOSIT proof references a bridgeId with no matching entry in the
// block's interactionResult list. Per spec.md §7(iii) this must surface
// rather than silently corrupt state.
var ErrInconsistentInteractionResult = errors.New("userstate: no interaction result for bridge id")

// ErrMissingDefiTx signals a DEFI_CLAIM whose claim record points at a
// txHash with no corresponding UserDefiTx — also a protocol violation
// rather than an expected storage miss.
var ErrMissingDefiTx = errors.New("userstate: claim references unknown defi tx")
