package models

// ErrorResponse carries an HTTP status code and a user-facing message.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Message    string `json:"reason"`
}

// NewErrorResponse creates a new error with a code and a message.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Message:    message}
}

// Error satisfies the error interface.
func (e *ErrorResponse) Error() string {
	return e.Message
}
