package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrBackendUnavailable = &AppError{Code: "BACKEND_001", Message: "backend unavailable"}
	ErrRequestFailed      = &AppError{Code: "BACKEND_002", Message: "backend request failed"}
	ErrReminderNotFound   = &AppError{Code: "BACKEND_003", Message: "reminder not found"}

	ErrSchedulerRunning    = &AppError{Code: "SCHED_001", Message: "scheduler already running"}
	ErrSchedulerNotRunning = &AppError{Code: "SCHED_002", Message: "scheduler not running"}

	ErrAudioUnavailable = &AppError{Code: "AUDIO_001", Message: "audio device unavailable"}
	ErrPlaybackFailed   = &AppError{Code: "AUDIO_002", Message: "audio playback failed"}

	ErrNotifyUnsupported = &AppError{Code: "NOTIFY_001", Message: "desktop notifications unsupported"}
	ErrNotifyDenied      = &AppError{Code: "NOTIFY_002", Message: "desktop notifications denied"}
	ErrNotifyFailed      = &AppError{Code: "NOTIFY_003", Message: "desktop notification failed"}

	ErrChannelNotConfigured = &AppError{Code: "CHAN_001", Message: "channel not configured"}
	ErrChannelUnavailable   = &AppError{Code: "CHAN_002", Message: "channel unavailable"}

	ErrStoreUnavailable = &AppError{Code: "STORE_001", Message: "database unavailable"}
	ErrRecordNotFound   = &AppError{Code: "STORE_002", Message: "record not found"}

	ErrUnauthorized = &AppError{Code: "AUTH_001", Message: "unauthorized"}
	ErrForbidden    = &AppError{Code: "AUTH_002", Message: "forbidden"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
