package catalog

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/books", NewHandler(svc).Routes)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const bookJSON = `{"isbn":"9780141439518","title":"Pride and Prejudice","author":"Jane Austen","publicationYear":1813,"availableCopies":5}`

func TestHandleAddBook(t *testing.T) {
	h := newTestRouter(NewStore(4))

	rec := serve(h, http.MethodPost, "/api/books", bookJSON)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(h, http.MethodPost, "/api/books", bookJSON)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleAddBookRejectsInvalidBody(t *testing.T) {
	h := newTestRouter(NewStore(4))

	rec := serve(h, http.MethodPost, "/api/books", `{"isbn":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodPost, "/api/books", `{"isbn":"1","title":"T","author":"A","publicationYear":0,"availableCopies":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"publicationYear":"publicationYear must be positive"}`, rec.Body.String())
}

func TestHandleGetBook(t *testing.T) {
	h := newTestRouter(NewStore(4))
	serve(h, http.MethodPost, "/api/books", bookJSON)

	rec := serve(h, http.MethodGet, "/api/books/9780141439518", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, bookJSON, rec.Body.String())

	rec = serve(h, http.MethodGet, "/api/books/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFindBooksByAuthor(t *testing.T) {
	h := newTestRouter(NewStore(4))
	serve(h, http.MethodPost, "/api/books", bookJSON)

	rec := serve(h, http.MethodGet, "/api/books?author=Jane+Austen", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "["+bookJSON+"]", rec.Body.String())

	rec = serve(h, http.MethodGet, "/api/books?author=Nobody", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/api/books", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFindBooksByEmptyAuthor(t *testing.T) {
	h := newTestRouter(NewStore(4))
	serve(h, http.MethodPost, "/api/books", bookJSON)

	rec := serve(h, http.MethodGet, "/api/books?author=", "")
	require.Equal(t, http.StatusOK, rec.Code, "a present but empty author is a valid search")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleRemoveBook(t *testing.T) {
	h := newTestRouter(NewStore(4))
	serve(h, http.MethodPost, "/api/books", bookJSON)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodDelete, "/api/books/9780141439518", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodDelete, "/api/books/9780141439518", "").Code)
}
