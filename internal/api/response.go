package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/nutrirag/internal/domain"
)

// Apology is the answer returned to users when a query cannot be served
const Apology = "Sorry, I couldn't answer that right now. Please try again later."

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// AnswerResponse is the body of every /query and /test reply.
// Error carries a DomainError code and is set only on failure.
type AnswerResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Answer writes a 200 answer
func Answer(w http.ResponseWriter, answer string) {
	JSON(w, http.StatusOK, AnswerResponse{Answer: answer})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeRetrievalUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrCodeRetrievalTimeout, domain.ErrCodeGenerationTimeout:
		return http.StatusGatewayTimeout
	case domain.ErrCodeGenerationFailure:
		return http.StatusBadGateway
	case domain.ErrCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes the apology with the error code; internals stay in the logs
func HandleError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)
	if code == "" {
		code = domain.ErrCodeInternalError
	}
	JSON(w, DomainErrorToHTTP(err), AnswerResponse{Answer: Apology, Error: code})
}
