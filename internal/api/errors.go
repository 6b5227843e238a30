package api

import "fmt"

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrRefreshRejected    ErrCode = "REFRESH_REJECTED"
	ErrAuthExpired        ErrCode = "AUTH_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotAvailable     ErrCode = "EXAM_NOT_AVAILABLE"
	ErrAttemptNotFound      ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptCompleted     ErrCode = "ATTEMPT_ALREADY_COMPLETED"
	ErrAttemptTimeExpired   ErrCode = "ATTEMPT_TIME_EXPIRED"
	ErrSubmitFailed         ErrCode = "SUBMIT_FAILED"
	ErrStaleAttemptMismatch ErrCode = "ATTEMPT_MISMATCH"

	// ─── Transport ─────────────────────────────────────────────────────
	ErrNetwork ErrCode = "NETWORK_ERROR"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Username atau kata sandi salah."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."
	case ErrRefreshRejected:
		return "Sesi Anda telah berakhir. Silakan login kembali."
	case ErrAuthExpired:
		return "Sesi Anda telah berakhir. Silakan login kembali."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrExamNotAvailable:
		return "Ujian ini saat ini tidak tersedia."
	case ErrAttemptNotFound:
		return "Sesi ujian tidak ditemukan."
	case ErrAttemptCompleted:
		return "Ujian ini sudah diselesaikan."
	case ErrAttemptTimeExpired:
		return "Waktu ujian telah habis."
	case ErrSubmitFailed:
		return "Gagal menyimpan jawaban. Silakan coba lagi."
	case ErrStaleAttemptMismatch:
		return "Sesi ujian tidak cocok dengan server."

	// ─── Transport ─────────────────────────────────────────────────────
	case ErrNetwork:
		return "Koneksi ke server gagal. Silakan coba lagi."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}

// Error is the single normalized error shape every backend or transport
// failure is reduced to before it reaches page-level code.
type Error struct {
	Code       ErrCode
	Message    string
	Fields     map[string]string
	HTTPStatus int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

// Retryable reports whether the operation may be retried by the user
// without any recovery step (transient submission failures).
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrSubmitFailed, ErrNetwork, ErrInternal:
		return true
	}
	return false
}

// IsAuth reports whether the error is a terminal authentication failure
// that requires a new login.
func (e *Error) IsAuth() bool {
	switch e.Code {
	case ErrAuthExpired, ErrRefreshRejected, ErrTokenExpired, ErrTokenInvalid, ErrTokenRequired:
		return true
	}
	return false
}

// NewError builds a normalized error for the given code with its canonical
// message.
func NewError(code ErrCode, httpStatus int) *Error {
	return &Error{Code: code, Message: GetMessage(code), HTTPStatus: httpStatus}
}

// NetworkError wraps a transport-level failure into the normalized shape.
func NetworkError(err error) *Error {
	return &Error{Code: ErrNetwork, Message: GetMessage(ErrNetwork) + " (" + err.Error() + ")"}
}
