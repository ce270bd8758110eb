// internal/catalog/handler.go
package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the book endpoints on r, relative to the books collection.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.handleAddBook)
	r.Get("/", h.handleFindBooksByAuthor)
	r.Get("/{isbn}", h.handleGetBook)
	r.Delete("/{isbn}", h.handleRemoveBook)
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var book Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := book.Validate(); err != nil {
		var fields ValidationErrors
		if errors.As(err, &fields) {
			WriteJSON(w, http.StatusBadRequest, fields)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.service.AddBook(r.Context(), book) {
		w.WriteHeader(http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, ok := h.service.FindBookByISBN(r.Context(), chi.URLParam(r, "isbn"))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleFindBooksByAuthor(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("author") {
		http.Error(w, "missing author", http.StatusBadRequest)
		return
	}

	WriteJSON(w, http.StatusOK, h.service.FindBooksByAuthor(r.Context(), query.Get("author")))
}

func (h *Handler) handleRemoveBook(w http.ResponseWriter, r *http.Request) {
	if !h.service.RemoveBook(r.Context(), chi.URLParam(r, "isbn")) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// WriteJSON writes v as the JSON body of a response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
