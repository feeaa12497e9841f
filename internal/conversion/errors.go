package conversion

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors returned while building or loading tables.
var (
	// ErrInvalidFactor indicates a non-positive factor, an empty unit or a self pair.
	ErrInvalidFactor = constError("invalid conversion factor")

	// ErrInvalidChannel indicates a channel without a name or without units.
	ErrInvalidChannel = constError("invalid channel definition")

	// ErrUnknownChannel is returned when a channel is not in the catalogue.
	ErrUnknownChannel = constError("unknown channel")

	// ErrUnsupportedVersion indicates a table file whose schema version is not supported.
	ErrUnsupportedVersion = constError("unsupported table version")
)
