package xerrors

import "errors"

// Common reusable application errors
var (
	ErrNotFound       = errors.New("gift code not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal server error")
	ErrRateLimited    = errors.New("too many requests")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Grant validation errors. Always raised before any write.
var (
	ErrInvalidTier     = errors.New("invalid subscription tier")
	ErrInvalidLevel    = errors.New("invalid subscription level")
	ErrInvalidDuration = errors.New("invalid subscription duration")
	ErrMissingPrice    = errors.New("price is required for this tier")
)

// Redemption errors. Terminal for the attempt and shown to the redeemer as is.
var (
	ErrAlreadyRedeemed = errors.New("you have already redeemed this code")
	ErrExhausted       = errors.New("this code has reached its usage limit")
)

// Storage errors.
var (
	ErrPersistenceConflict = errors.New("concurrent update conflict")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	// ErrInconsistentState means a gift code was consumed but its reward was
	// not applied. Needs manual reconciliation.
	ErrInconsistentState = errors.New("gift code consumed but reward not applied")
)

// IsValidation reports whether err is a caller mistake that can be retried
// once the input is corrected.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidTier) ||
		errors.Is(err, ErrInvalidLevel) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrMissingPrice) ||
		errors.Is(err, ErrInvalidInput)
}

// IsRedemption reports whether err ends a redemption attempt for good.
func IsRedemption(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyRedeemed) ||
		errors.Is(err, ErrExhausted)
}
