package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Input validation errors (100-199)
	ErrCodeInvalidPeriodLength  ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidParameter     ErrorCode = 102
	ErrCodeUnsupportedSource    ErrorCode = 103
	ErrCodeUnsupportedWriter    ErrorCode = 104

	// Upstream/source errors (200-299)
	ErrCodeSourceUnavailable     ErrorCode = 200
	ErrCodeTransportTimeout      ErrorCode = 201
	ErrCodeMalformedUpstreamData ErrorCode = 202

	// Record validation errors (300-399)
	ErrCodeRecordValidation ErrorCode = 300

	// Persistence errors (400-499)
	ErrCodePersistenceFailed ErrorCode = 400
)

// Process exit statuses reported by the CLI, one per failure class so callers
// can script on them.
const (
	ExitSuccess            = 0
	ExitSourceUnavailable  = 1
	ExitTransportTimeout   = 2
	ExitMalformedUpstream  = 3
	ExitPersistenceFailure = 4
	ExitValidationFailure  = 5
	ExitInputValidation    = 6
)

// ExitStatus maps an error to its stable process exit status.
// A nil error maps to ExitSuccess; errors without a known code map to
// ExitSourceUnavailable as the generic upstream failure.
func ExitStatus(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch GetCode(err) {
	case ErrCodeInvalidPeriodLength, ErrCodeInvalidConfiguration, ErrCodeInvalidParameter,
		ErrCodeUnsupportedSource, ErrCodeUnsupportedWriter:
		return ExitInputValidation
	case ErrCodeSourceUnavailable:
		return ExitSourceUnavailable
	case ErrCodeTransportTimeout:
		return ExitTransportTimeout
	case ErrCodeMalformedUpstreamData:
		return ExitMalformedUpstream
	case ErrCodeRecordValidation:
		return ExitValidationFailure
	case ErrCodePersistenceFailed:
		return ExitPersistenceFailure
	default:
		return ExitSourceUnavailable
	}
}
