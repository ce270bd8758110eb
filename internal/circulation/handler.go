// internal/circulation/handler.go
package circulation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"libraryinventory/internal/catalog"
)

// Handler serves lending of book copies.
type Handler struct {
	service catalog.Service
}

func NewHandler(service catalog.Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the borrow and return endpoints on r, relative to the books collection.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/{isbn}/borrow", h.handleBorrow)
	r.Post("/{isbn}/return", h.handleReturn)
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	switch h.service.BorrowBook(r.Context(), chi.URLParam(r, "isbn")) {
	case catalog.Borrowed:
		w.WriteHeader(http.StatusOK)
	case catalog.NoCopiesAvailable:
		catalog.WriteJSON(w, http.StatusConflict, map[string]string{"errorMessage": "No copies available"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	if !h.service.ReturnBook(r.Context(), chi.URLParam(r, "isbn")) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}
