package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrEmailTaken         ErrCode = "EMAIL_ALREADY_REGISTERED"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden    ErrCode = "FORBIDDEN"
	ErrNotQuizOwner ErrCode = "NOT_QUIZ_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrQuizNotPublished  ErrCode = "QUIZ_NOT_PUBLISHED"
	ErrQuizConfigInvalid ErrCode = "QUIZ_CONFIG_INVALID"
	ErrNoQuizCredits     ErrCode = "NO_QUIZ_CREDITS"

	// ─── Play-session ──────────────────────────────────────────────────
	ErrPlaySessionExpired ErrCode = "PLAY_SESSION_EXPIRED"
	ErrQuestionMismatch   ErrCode = "QUESTION_MISMATCH"
	ErrUnknownOption      ErrCode = "UNKNOWN_OPTION"
	ErrNothingSelected    ErrCode = "NOTHING_SELECTED"
	ErrStepMismatch       ErrCode = "STEP_MISMATCH"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Incorrect email or password."
	case ErrEmailTaken:
		return "An account with this email already exists."
	case ErrSessionInvalidated:
		return "Your session has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrNotQuizOwner:
		return "You are not the owner of this quiz."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrQuizNotPublished:
		return "This quiz is not published."
	case ErrQuizConfigInvalid:
		return "The quiz configuration is incomplete or unsupported."
	case ErrNoQuizCredits:
		return "You have no quiz credits remaining."

	// ─── Play-session ──────────────────────────────────────────────────
	case ErrPlaySessionExpired:
		return "This play session has expired or does not exist."
	case ErrQuestionMismatch:
		return "The answer does not target the current question."
	case ErrUnknownOption:
		return "The selected option does not belong to the current question."
	case ErrNothingSelected:
		return "Select an option before advancing."
	case ErrStepMismatch:
		return "This action is not allowed at the current step."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
