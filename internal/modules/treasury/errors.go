package treasury

import "errors"

// Error taxonomy for treasury operations. All failures are synchronous and
// fail-fast: an operation either completes fully or leaves no trace. Match
// with errors.Is; operations wrap these with token/amount context.
var (
	// ErrInvalidAllocation - allocation argument outside [0, 10000].
	ErrInvalidAllocation = errors.New("allocation must be between 0 and 10000 basis points")

	// ErrDuplicateAsset - registering an already-active token.
	ErrDuplicateAsset = errors.New("asset is already registered")

	// ErrUnknownAsset - operating on a token that is not active.
	ErrUnknownAsset = errors.New("asset is not registered")

	// ErrNonZeroBalance - removing an asset that still holds balance.
	ErrNonZeroBalance = errors.New("asset balance must be zero before removal")

	// ErrInactiveAsset - submitting a rebalancing action against an
	// inactive or unregistered asset.
	ErrInactiveAsset = errors.New("asset is not active")

	// ErrInsufficientBalance - sell amount exceeds tracked balance.
	ErrInsufficientBalance = errors.New("insufficient balance for sell action")

	// ErrRebalancingDisabled - mutating call while the global flag is off.
	ErrRebalancingDisabled = errors.New("rebalancing is disabled")

	// ErrUnauthorizedCaller - caller lacks the role the operation requires.
	ErrUnauthorizedCaller = errors.New("caller is not authorized for this operation")

	// ErrNegativeAmount - action or registration amount below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")
)
