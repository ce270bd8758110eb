// internal/clients/catalog_client.go
package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	jsoniter "github.com/json-iterator/go"

	"libraryinventory/internal/catalog"
)

var (
	ErrTooManyRequests  = errors.New("too many requests")
	ErrBookNotFound     = errors.New("book not found")
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CatalogClient talks to the books API of the inventory service.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{baseURL: baseURL, httpClient: http.DefaultClient}
}

// WithHTTPClient returns a copy of c that sends requests through hc.
func (c *CatalogClient) WithHTTPClient(hc *http.Client) *CatalogClient {
	return &CatalogClient{baseURL: c.baseURL, httpClient: hc}
}

// AddBook reports true when the book was new and false when it replaced an existing one.
func (c *CatalogClient) AddBook(ctx context.Context, book catalog.Book) (bool, error) {
	body, err := json.Marshal(book)
	if err != nil {
		return false, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/books", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return true, nil
	case http.StatusConflict:
		return false, nil
	default:
		return false, statusError(resp)
	}
}

// GetBook returns ErrBookNotFound when the ISBN is unknown.
func (c *CatalogClient) GetBook(ctx context.Context, isbn string) (*catalog.Book, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/books/"+url.PathEscape(isbn), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var book catalog.Book
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *CatalogClient) FindBooksByAuthor(ctx context.Context, author string) ([]catalog.Book, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/books?author="+url.QueryEscape(author), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var books []catalog.Book
	if err := json.NewDecoder(resp.Body).Decode(&books); err != nil {
		return nil, err
	}
	return books, nil
}

// RemoveBook returns ErrBookNotFound when the ISBN is unknown.
func (c *CatalogClient) RemoveBook(ctx context.Context, isbn string) error {
	return c.expectOK(ctx, http.MethodDelete, "/api/books/"+url.PathEscape(isbn))
}

// BorrowBook maps the borrow response onto a catalog.BorrowOutcome.
// Transport failures and shed requests are returned as errors.
func (c *CatalogClient) BorrowBook(ctx context.Context, isbn string) (catalog.BorrowOutcome, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/books/"+url.PathEscape(isbn)+"/borrow", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return catalog.Borrowed, nil
	case http.StatusNotFound:
		return catalog.BookNotFound, nil
	case http.StatusConflict:
		return catalog.NoCopiesAvailable, nil
	default:
		return 0, statusError(resp)
	}
}

// ReturnBook returns ErrBookNotFound when the ISBN is unknown.
func (c *CatalogClient) ReturnBook(ctx context.Context, isbn string) error {
	return c.expectOK(ctx, http.MethodPost, "/api/books/"+url.PathEscape(isbn)+"/return")
}

// Health checks the ungated liveness endpoint.
func (c *CatalogClient) Health(ctx context.Context) error {
	return c.expectOK(ctx, http.MethodGet, "/healthz")
}

func (c *CatalogClient) expectOK(ctx context.Context, method, path string) error {
	resp, err := c.do(ctx, method, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (c *CatalogClient) do(ctx context.Context, method, path string, body *bytes.Reader) (*http.Response, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return ErrTooManyRequests
	case http.StatusNotFound:
		return ErrBookNotFound
	default:
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}
