package purchase

import "errors"

// ErrInvalidBuyer is returned when the buyer identifier is empty.
var ErrInvalidBuyer = errors.New("buyer identifier must not be empty")

// ErrInvalidQuantity is returned when the requested star quantity is not positive.
var ErrInvalidQuantity = errors.New("quantity must be positive")

// ErrInvalidMonths is returned when the gift duration is outside the allowed set.
var ErrInvalidMonths = errors.New("months must be one of 3, 6 or 12")
