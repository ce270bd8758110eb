package chaos

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"libraryinventory/internal/catalog"
	"libraryinventory/internal/clients"
)

// ChaosAuthor is the author of every book the experiments create.
const ChaosAuthor = "Chaos Monkey"

const shedRetryDelay = 5 * time.Millisecond

// RegisterDefaults registers the standard experiments against the service behind client.
func (e *Engine) RegisterDefaults(client *clients.CatalogClient) {
	e.Register(ConcurrentBorrowExperiment(client, "chaos-0001", 5, 50))
	e.Register(AdmissionSheddingExperiment(client, "chaos-0002", 100))
}

// ConcurrentBorrowExperiment fires borrowers concurrent borrows at a book holding copies
// copies and checks that exactly min(borrowers, copies) succeed.
func ConcurrentBorrowExperiment(client *clients.CatalogClient, isbn string, copies, borrowers int) Experiment {
	var lent atomic.Int64

	return Experiment{
		Name:       "concurrent-borrow-race-condition",
		Hypothesis: "Concurrent borrowers never take more copies than the inventory holds",
		SteadyState: []Signal{
			{
				Name:      "negative_copies",
				Measure:   negativeCopies(client),
				Tolerance: Threshold{Operator: "==", Value: 0},
			},
			{
				Name:      "lent_copies",
				Measure:   gauge(&lent),
				Tolerance: Threshold{Operator: "<=", Value: float64(copies)},
			},
		},
		Inject: []Step{
			{
				Kind:   "seed",
				Target: isbn,
				Run: func(ctx context.Context) error {
					lent.Store(0)
					return addBook(ctx, client, isbn, copies)
				},
			},
			{
				Kind:   "borrow-burst",
				Target: isbn,
				Run: func(ctx context.Context) error {
					var wg sync.WaitGroup
					errs := make(chan error, borrowers)

					for i := 0; i < borrowers; i++ {
						wg.Add(1)
						go func() {
							defer wg.Done()
							outcome, err := retryShed(ctx, func() (catalog.BorrowOutcome, error) {
								return client.BorrowBook(ctx, isbn)
							})
							if err != nil {
								errs <- err
								return
							}
							if outcome == catalog.Borrowed {
								lent.Inc()
							}
						}()
					}

					wg.Wait()
					close(errs)
					return errors.Join(collect(errs)...)
				},
			},
		},
		Rollback: []Step{removeStep(client, isbn)},
		Checks: []Check{
			{
				Signal:  "negative_copies",
				Pass:    func(v float64) bool { return v == 0 },
				Message: "No book may report a negative copy count",
			},
			{
				Signal:  "lent_copies",
				Pass:    func(v float64) bool { return v == float64(min(borrowers, copies)) },
				Message: "Exactly min(borrowers, copies) borrows should succeed",
			},
		},
		Observe: 200 * time.Millisecond,
	}
}

// AdmissionSheddingExperiment bursts burst concurrent lookups at the service and checks
// that excess requests are shed with 429 rather than failing in any other way.
func AdmissionSheddingExperiment(client *clients.CatalogClient, isbn string, burst int) Experiment {
	var unexpected, shed atomic.Int64

	return Experiment{
		Name:       "admission-gate-saturation",
		Hypothesis: "Requests beyond the concurrency limit are shed and the service stays available",
		SteadyState: []Signal{
			{
				Name:      "unexpected_errors",
				Measure:   gauge(&unexpected),
				Tolerance: Threshold{Operator: "==", Value: 0},
			},
			{
				Name:      "shed_requests",
				Measure:   gauge(&shed),
				Tolerance: Threshold{Operator: ">=", Value: 0},
			},
			{
				Name: "availability",
				Measure: func(ctx context.Context) (float64, error) {
					if err := client.Health(ctx); err != nil {
						return 0, nil
					}
					return 1, nil
				},
				Tolerance: Threshold{Operator: "==", Value: 1},
			},
		},
		Inject: []Step{
			{
				Kind:   "seed",
				Target: isbn,
				Run: func(ctx context.Context) error {
					unexpected.Store(0)
					shed.Store(0)
					return addBook(ctx, client, isbn, 1)
				},
			},
			{
				Kind:   "lookup-burst",
				Target: "admission-gate",
				Run: func(ctx context.Context) error {
					var wg sync.WaitGroup
					for i := 0; i < burst; i++ {
						wg.Add(1)
						go func() {
							defer wg.Done()
							_, err := client.GetBook(ctx, isbn)
							switch {
							case err == nil:
							case errors.Is(err, clients.ErrTooManyRequests):
								shed.Inc()
							default:
								unexpected.Inc()
							}
						}()
					}
					wg.Wait()
					return nil
				},
			},
		},
		Rollback: []Step{removeStep(client, isbn)},
		Checks: []Check{
			{
				Signal:  "unexpected_errors",
				Pass:    func(v float64) bool { return v == 0 },
				Message: "Saturation must only surface as 429 responses",
			},
			{
				Signal:  "availability",
				Pass:    func(v float64) bool { return v == 1 },
				Message: "The service should keep answering after the burst",
			},
		},
		Observe: 200 * time.Millisecond,
	}
}

func gauge(n *atomic.Int64) func(context.Context) (float64, error) {
	return func(context.Context) (float64, error) {
		return float64(n.Load()), nil
	}
}

func addBook(ctx context.Context, client *clients.CatalogClient, isbn string, copies int) error {
	_, err := retryShed(ctx, func() (bool, error) {
		return client.AddBook(ctx, catalog.Book{
			ISBN:            isbn,
			Title:           "Experiment " + isbn,
			Author:          ChaosAuthor,
			PublicationYear: 2024,
			AvailableCopies: copies,
		})
	})
	return err
}

func removeStep(client *clients.CatalogClient, isbn string) Step {
	return Step{
		Kind:   "remove",
		Target: isbn,
		Run: func(ctx context.Context) error {
			_, err := retryShed(ctx, func() (struct{}, error) {
				return struct{}{}, client.RemoveBook(ctx, isbn)
			})
			return err
		},
	}
}

// negativeCopies counts experiment books that report fewer than zero copies.
func negativeCopies(client *clients.CatalogClient) func(context.Context) (float64, error) {
	return func(ctx context.Context) (float64, error) {
		books, err := retryShed(ctx, func() ([]catalog.Book, error) {
			return client.FindBooksByAuthor(ctx, ChaosAuthor)
		})
		if err != nil {
			return 0, err
		}
		negative := 0
		for _, b := range books {
			if b.AvailableCopies < 0 {
				negative++
			}
		}
		return float64(negative), nil
	}
}

// retryShed repeats call while the service sheds it with 429.
func retryShed[T any](ctx context.Context, call func() (T, error)) (T, error) {
	for {
		v, err := call()
		if !errors.Is(err, clients.ErrTooManyRequests) {
			return v, err
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-time.After(shedRetryDelay):
		}
	}
}

func collect(errs <-chan error) []error {
	var out []error
	for err := range errs {
		out = append(out, err)
	}
	return out
}
