package middleware

import (
	"net/http"

	"github.com/cloo-solutions/nutrirag/internal/api"
	"github.com/cloo-solutions/nutrirag/internal/domain"
)

// MaxBodyBytes limits request body size. Oversized bodies declared up front
// are refused here; chunked ones fail later in DecodeJSON.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit && r.ContentLength != -1 {
				api.JSON(w, http.StatusRequestEntityTooLarge, api.AnswerResponse{
					Answer: api.Apology,
					Error:  domain.ErrCodeValidation,
				})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
