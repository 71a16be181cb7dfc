package apperrors

// Category groups error codes for analytics. It has no behavioral effect.
type Category string

const (
	CategoryTimeout    Category = "timeout"
	CategoryValidation Category = "validation"
	CategoryLimit      Category = "limit"
	CategoryServer     Category = "server"
	CategoryUnknown    Category = "unknown"
)

// Action is a user-facing remediation hint.
type Action string

const (
	ActionRetry          Action = "retry"
	ActionRetake         Action = "retake"
	ActionManualSelect   Action = "manual_select"
	ActionContactSupport Action = "contact_support"
	ActionUpgrade        Action = "upgrade"
)

// Stable user-facing error codes.
const (
	CodeImageDecodeFailed      = "IMAGE_DECODE_FAILED"
	CodeImageUnsupportedFormat = "IMAGE_UNSUPPORTED_FORMAT"
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeInvalidDate            = "INVALID_DATE"
	CodeInvalidStatus          = "INVALID_STATUS"
	CodeUnsupportedContent     = "UNSUPPORTED_CONTENT"
	CodeLowConfidence          = "LOW_CONFIDENCE"
	CodeEmptyResult            = "EMPTY_RESULT"
	CodeRecognitionTimeout     = "RECOGNITION_TIMEOUT"
	CodeRecognitionUnavailable = "RECOGNITION_UNAVAILABLE"
	CodeAuthFailed             = "AUTH_FAILED"
	CodeLimitExceeded          = "LIMIT_EXCEEDED"
	CodeNotFound               = "NOT_FOUND"
	CodeUnknownError           = "UNKNOWN_ERROR"
)

// Definition is an immutable, code-keyed description of a user-facing error.
type Definition struct {
	Code          string
	UserTitle     string
	UserMessage   string
	Actions       []Action
	AllowRetry    bool
	RetryAfterSec int
	Category      Category
}

var definitions = map[string]Definition{
	CodeImageDecodeFailed: {
		Code:        CodeImageDecodeFailed,
		UserTitle:   "Image could not be read",
		UserMessage: "The uploaded file does not look like a valid photo. Please take a new picture and try again.",
		Actions:     []Action{ActionRetake},
		Category:    CategoryValidation,
	},
	CodeImageUnsupportedFormat: {
		Code:        CodeImageUnsupportedFormat,
		UserTitle:   "Unsupported image format",
		UserMessage: "This image format is not supported. Please upload a JPEG or PNG photo.",
		Actions:     []Action{ActionRetake},
		Category:    CategoryValidation,
	},
	CodeInvalidRequest: {
		Code:        CodeInvalidRequest,
		UserTitle:   "Invalid request",
		UserMessage: "The request is malformed. Please check the submitted fields and try again.",
		Actions:     []Action{ActionRetry},
		AllowRetry:  true,
		Category:    CategoryValidation,
	},
	CodeInvalidDate: {
		Code:        CodeInvalidDate,
		UserTitle:   "Invalid date",
		UserMessage: "The meal date could not be parsed. Use the YYYY-MM-DD format.",
		Actions:     []Action{ActionRetry},
		AllowRetry:  true,
		Category:    CategoryValidation,
	},
	CodeInvalidStatus: {
		Code:        CodeInvalidStatus,
		UserTitle:   "Retry not possible",
		UserMessage: "Only a failed recognition can be retried.",
		Actions:     []Action{},
		Category:    CategoryValidation,
	},
	CodeUnsupportedContent: {
		Code:        CodeUnsupportedContent,
		UserTitle:   "No food detected",
		UserMessage: "We could not find any food on this photo. Please take a picture of your meal.",
		Actions:     []Action{ActionRetake, ActionManualSelect},
		Category:    CategoryValidation,
	},
	CodeLowConfidence: {
		Code:        CodeLowConfidence,
		UserTitle:   "Photo is unclear",
		UserMessage: "We are not confident about what is on this photo. Try better lighting or a closer shot, or pick the dish manually.",
		Actions:     []Action{ActionRetake, ActionManualSelect},
		Category:    CategoryValidation,
	},
	CodeEmptyResult: {
		Code:        CodeEmptyResult,
		UserTitle:   "Nothing recognized",
		UserMessage: "Recognition finished but returned no items. You can retake the photo or select the dish manually.",
		Actions:     []Action{ActionRetake, ActionManualSelect},
		Category:    CategoryValidation,
	},
	CodeRecognitionTimeout: {
		Code:          CodeRecognitionTimeout,
		UserTitle:     "Recognition timed out",
		UserMessage:   "The recognition service is taking too long. Please try again in a minute.",
		Actions:       []Action{ActionRetry},
		AllowRetry:    true,
		RetryAfterSec: 60,
		Category:      CategoryTimeout,
	},
	CodeRecognitionUnavailable: {
		Code:          CodeRecognitionUnavailable,
		UserTitle:     "Service temporarily unavailable",
		UserMessage:   "The recognition service is temporarily unavailable. Please try again shortly.",
		Actions:       []Action{ActionRetry},
		AllowRetry:    true,
		RetryAfterSec: 120,
		Category:      CategoryServer,
	},
	CodeAuthFailed: {
		Code:        CodeAuthFailed,
		UserTitle:   "Recognition unavailable",
		UserMessage: "The recognition service rejected our credentials. Our team has been notified.",
		Actions:     []Action{ActionContactSupport},
		Category:    CategoryServer,
	},
	CodeLimitExceeded: {
		Code:        CodeLimitExceeded,
		UserTitle:   "Daily limit reached",
		UserMessage: "You have used all recognitions for today. The limit resets at midnight UTC, or you can upgrade your plan.",
		Actions:     []Action{ActionUpgrade},
		Category:    CategoryLimit,
	},
	CodeNotFound: {
		Code:        CodeNotFound,
		UserTitle:   "Not found",
		UserMessage: "The requested recognition was not found.",
		Actions:     []Action{},
		Category:    CategoryValidation,
	},
	CodeUnknownError: {
		Code:        CodeUnknownError,
		UserTitle:   "Something went wrong",
		UserMessage: "An unexpected error occurred. Please try again or contact support.",
		Actions:     []Action{ActionRetry, ActionContactSupport},
		AllowRetry:  true,
		Category:    CategoryUnknown,
	},
}

// Registry resolves error codes to their user-facing definitions.
type Registry struct {
	debug bool
}

// NewRegistry constructs the registry. When debug is enabled, responses may
// carry an internal diagnostic payload; in production it must stay disabled.
func NewRegistry(debug bool) *Registry {
	return &Registry{debug: debug}
}

// ByCode returns the definition for the given code. Unrecognized codes resolve
// to the generic UNKNOWN_ERROR definition, so callers only ever branch on code
// equality, never on a missing definition.
func (r *Registry) ByCode(code string) Definition {
	if def, ok := definitions[code]; ok {
		return def
	}
	return definitions[CodeUnknownError]
}

// Response is the wire shape every failure path serializes to.
type Response struct {
	ErrorCode     string                 `json:"error_code"`
	UserTitle     string                 `json:"user_title"`
	UserMessage   string                 `json:"user_message"`
	UserActions   []Action               `json:"user_actions"`
	AllowRetry    bool                   `json:"allow_retry"`
	RetryAfterSec *int                   `json:"retry_after_sec,omitempty"`
	TraceID       string                 `json:"trace_id,omitempty"`
	Debug         map[string]interface{} `json:"debug,omitempty"`
}

// Response serializes the definition for the given code. The debug payload is
// attached only when the registry runs in diagnostic mode and is dropped
// silently otherwise.
func (r *Registry) Response(code, traceID string, debug map[string]interface{}) Response {
	def := r.ByCode(code)
	resp := Response{
		ErrorCode:   def.Code,
		UserTitle:   def.UserTitle,
		UserMessage: def.UserMessage,
		UserActions: def.Actions,
		AllowRetry:  def.AllowRetry,
		TraceID:     traceID,
	}
	if resp.UserActions == nil {
		resp.UserActions = []Action{}
	}
	if def.RetryAfterSec > 0 {
		sec := def.RetryAfterSec
		resp.RetryAfterSec = &sec
	}
	if r.debug && debug != nil {
		resp.Debug = debug
	}
	return resp
}

// ResponseRetryAfter is Response with an explicit retry-after override, used
// for codes whose hint is computed at call time (e.g. quota reset).
func (r *Registry) ResponseRetryAfter(code, traceID string, retryAfterSec int, debug map[string]interface{}) Response {
	resp := r.Response(code, traceID, debug)
	if retryAfterSec > 0 {
		resp.RetryAfterSec = &retryAfterSec
	}
	return resp
}
