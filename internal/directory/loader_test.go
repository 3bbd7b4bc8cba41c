package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/carebook/appointment-booking/internal/booking"
)

type fakeStore struct {
	providers []booking.Provider
	err       error
	calls     int
}

func (s *fakeStore) ListProviders(_ context.Context) ([]booking.Provider, error) {
	s.calls++
	return s.providers, s.err
}

func TestProvidersWithoutCache(t *testing.T) {
	store := &fakeStore{providers: []booking.Provider{
		{ID: uuid.New(), Name: "Dr. Rao"},
		{ID: uuid.New(), Name: "Dr. Mehta"},
	}}

	loader := NewLoader(store, nil, 0)

	got, err := loader.Providers(context.Background())
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d providers, want 2", len(got))
	}

	// No cache configured, every call goes to the store.
	if _, err := loader.Providers(context.Background()); err != nil {
		t.Fatalf("Providers: %v", err)
	}
	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2", store.calls)
	}
}

func TestProvidersPropagatesStoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	loader := NewLoader(&fakeStore{err: storeErr}, nil, 0)

	if _, err := loader.Providers(context.Background()); !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}

func TestInvalidateWithoutCache(t *testing.T) {
	loader := NewLoader(&fakeStore{}, nil, 0)
	if err := loader.Invalidate(context.Background()); err != nil {
		t.Errorf("Invalidate: %v", err)
	}
}
