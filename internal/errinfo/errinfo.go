package errinfo

import "fmt"

// ErrorInfo is the structured error surfaced across operation boundaries.
// UserMessage is safe to show to the end user; Detail is for logs.
type ErrorInfo struct {
	ErrorCode   string   `json:"error_code"`
	Phase       string   `json:"phase,omitempty"`
	Retryable   bool     `json:"retryable"`
	Actions     []string `json:"actions,omitempty"`
	UserMessage string   `json:"user_message,omitempty"`
	Detail      string   `json:"detail,omitempty"`
}

func (e *ErrorInfo) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.ErrorCode, e.Detail)
	}
	return e.ErrorCode
}

const (
	CodeValidationFailed         = "VALIDATION_FAILED"
	CodeFileTooLarge             = "FILE_TOO_LARGE"
	CodeFileReadFailed           = "FILE_READ_FAILED"
	CodeFileWriteFailed          = "FILE_WRITE_FAILED"
	CodeDocumentMissing          = "DOCUMENT_MISSING"
	CodeDocumentProcessingFailed = "DOCUMENT_PROCESSING_FAILED"
	CodeSessionNotFound          = "SESSION_NOT_FOUND"
	CodeSessionExpired           = "SESSION_EXPIRED"
	CodeUsageLimitReached        = "USAGE_LIMIT_REACHED"
	CodeRateLimited              = "RATE_LIMITED"
	CodeAITimeout                = "AI_TIMEOUT"
	CodeAIResponseInvalid        = "AI_RESPONSE_INVALID"
	CodeProviderNotConfigured    = "PROVIDER_NOT_CONFIGURED"
	CodeProviderAuthFailed       = "PROVIDER_AUTH_FAILED"
	CodeProviderUnavailable      = "PROVIDER_UNAVAILABLE"
	CodeInternal                 = "INTERNAL_ERROR"
)

const (
	ActionRetry = "retry"
)

const (
	PhaseUpload   = "upload"
	PhaseFind     = "find"
	PhaseReplace  = "replace"
	PhaseAnalyze  = "analyze"
	PhaseApply    = "apply"
	PhaseDownload = "download"
	PhaseSession  = "session"
	PhaseSweep    = "sweep"
)

func ValidationFailed(phase, userMessage, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeValidationFailed,
		Phase:       phase,
		Retryable:   false,
		UserMessage: userMessage,
		Detail:      detail,
	}
}

func FileTooLarge(phase string, maxMB int) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeFileTooLarge,
		Phase:       phase,
		Retryable:   false,
		UserMessage: fmt.Sprintf("File is too large. Maximum size is %dMB.", maxMB),
	}
}

func FileReadFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeFileReadFailed,
		Phase:       phase,
		Retryable:   true,
		Actions:     []string{ActionRetry},
		UserMessage: "Failed to read the document. Please try again.",
		Detail:      detail,
	}
}

func FileWriteFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeFileWriteFailed,
		Phase:       phase,
		Retryable:   true,
		Actions:     []string{ActionRetry},
		UserMessage: "Failed to save the document. Please try again.",
		Detail:      detail,
	}
}

func DocumentMissing(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeDocumentMissing,
		Phase:       phase,
		Retryable:   false,
		UserMessage: "Please send a document file first.",
	}
}

func DocumentProcessingFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeDocumentProcessingFailed,
		Phase:       phase,
		Retryable:   true,
		Actions:     []string{ActionRetry},
		UserMessage: "An unexpected error occurred. Please try again.",
		Detail:      detail,
	}
}

func SessionNotFound(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeSessionNotFound,
		Phase:       phase,
		Retryable:   false,
		UserMessage: "No active session. Use /restart to start again.",
	}
}

func SessionExpired(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeSessionExpired,
		Phase:       phase,
		Retryable:   false,
		UserMessage: "Session expired. File deleted.\n\nUse /restart to start again.",
	}
}

func UsageLimitReached(phase string, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeUsageLimitReached,
		Phase:       phase,
		Retryable:   false,
		UserMessage: "You have reached your analysis limit. Please try again later.",
		Detail:      detail,
	}
}

func RateLimited(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeRateLimited,
		Phase:       phase,
		Retryable:   true,
		Actions:     []string{ActionRetry},
		UserMessage: "Too many requests. Please slow down.",
	}
}

func AITimeout(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeAITimeout,
		Phase:       phase,
		Retryable:   true,
		Actions:     []string{ActionRetry},
		UserMessage: "Analysis timed out. Please try again with a smaller document.",
	}
}

func AIResponseInvalid(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeAIResponseInvalid,
		Phase:       phase,
		Retryable:   true,
		Actions:     []string{ActionRetry},
		UserMessage: "The analysis service returned an unexpected response. Please try again.",
		Detail:      detail,
	}
}

func ProviderNotConfigured(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeProviderNotConfigured,
		Phase:       phase,
		Retryable:   false,
		UserMessage: "The analysis service is not configured.",
	}
}

func ProviderAuthFailed(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeProviderAuthFailed,
		Phase:       phase,
		Retryable:   false,
		UserMessage: "The analysis service rejected the configured credentials.",
	}
}

func ProviderUnavailable(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeProviderUnavailable,
		Phase:       phase,
		Retryable:   true,
		Actions:     []string{ActionRetry},
		UserMessage: "The analysis service is temporarily unavailable. Please try again.",
		Detail:      detail,
	}
}

func Internal(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode:   CodeInternal,
		Phase:       phase,
		Retryable:   true,
		Actions:     []string{ActionRetry},
		UserMessage: "An unexpected error occurred. Please try again.",
		Detail:      detail,
	}
}
