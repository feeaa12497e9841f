package emission

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

// ErrInvalidFactor indicates a negative or non-finite emission factor.
const ErrInvalidFactor = constError("invalid emission factor")
