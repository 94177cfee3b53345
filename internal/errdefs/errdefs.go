package errdefs

type ErrorType int

const (
	ErrTypeDisplayNotFound ErrorType = iota
	ErrTypeUnsupportedCommand
	ErrTypeReadFailed
	ErrTypeNoGammaAccess
	ErrTypeNoOverlay
	ErrTypeGeneric
)

type CustomError struct {
	Type    ErrorType
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

func NewCustomError(errType ErrorType, message string) error {
	return &CustomError{
		Type:    errType,
		Message: message,
	}
}

var (
	ErrDisplayNotFound    = NewCustomError(ErrTypeDisplayNotFound, "display not found")
	ErrUnsupportedCommand = NewCustomError(ErrTypeUnsupportedCommand, "command not supported by control method")
	ErrReadFailed         = NewCustomError(ErrTypeReadFailed, "hardware read failed after all attempts")
	ErrNoGammaAccess      = NewCustomError(ErrTypeNoGammaAccess, "display has no gamma table access")
	ErrNoOverlay          = NewCustomError(ErrTypeNoOverlay, "no overlay surface available for display")
)
