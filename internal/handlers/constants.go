package handlers

const (
	ErrInvalidFormData     = "Invalid form data"
	ErrUnauthorized        = "Unauthorized"
	ErrForbidden           = "Forbidden"
	ErrInvalidCSRF         = "Invalid CSRF token"
	ErrTooManyRequests     = "Too many requests, please try again later"
	ErrNotFound            = "Not found"
	ErrBackendUnavailable  = "The learning platform is unavailable, please try again"
	ErrInternalServerError = "Internal server error"

	// maxUploadMemory bounds the multipart form kept in memory
	maxUploadMemory = 10 << 20
)
