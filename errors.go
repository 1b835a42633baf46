package folio

import "errors"

// Mutation errors. Every mutation validates its arguments and
// preconditions before touching any state, so a returned error always
// means the ledger is unchanged.
var (
	// ErrInvalidArgument reports a non-positive quantity, price, amount
	// or rate, or a malformed instrument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientQuantity reports a sell larger than the holding.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrInsufficientBalance reports a buy that would push the tracked
	// cash balance negative. Only possible in cash-tracking mode.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAlreadyReversed reports a second reversal of the same transaction.
	ErrAlreadyReversed = errors.New("transaction already reversed")

	// ErrNotFound reports an unknown transaction, instrument or holding id.
	ErrNotFound = errors.New("not found")
)

// ErrPriceUnavailable reports that no price could be obtained for an
// instrument. It is never fatal: valuation falls back to the cost basis
// and flags the result as stale.
var ErrPriceUnavailable = errors.New("price unavailable")
