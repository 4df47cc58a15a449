// Package web holds the HTTP plumbing shared by every handler: JSON helpers,
// sessions and middleware.
package web

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/rexlx/mindhaven/internal/apperr"
)

// MaxRequestBodySize bounds JSON request bodies.
const MaxRequestBodySize = 1 << 20

// PageSize is the default page length of list endpoints.
const PageSize = 50

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: encode response: %v", err)
	}
}

// WriteError maps err onto a status and writes {"error": message}.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	WriteJSON(w, status, map[string]string{"error": apperr.MessageOf(err)})
}

// DecodeJSON reads a bounded JSON body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Invalid("Request body too large")
		}
		return apperr.Invalid("Invalid JSON body")
	}
	return nil
}

// MaxPage keeps (page-1)*PageSize inside a 32-bit OFFSET.
const MaxPage = math.MaxInt32 / PageSize

// ClampPage bounds a 1-based page number to [1, MaxPage].
func ClampPage(page int) int {
	return min(max(page, 1), MaxPage)
}

// Page reads ?page= (1-based) and returns limit and offset for PageSize.
func Page(r *http.Request) (page, limit, offset int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	page = ClampPage(page)
	return page, PageSize, (page - 1) * PageSize
}

// Pagination describes a page of a list response.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	Total       int  `json:"total"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

// NewPagination computes page metadata for total items.
func NewPagination(page, total int) Pagination {
	totalPages := (total + PageSize - 1) / PageSize
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		Total:       total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}
