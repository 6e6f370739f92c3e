package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/answerdesk/retrieval/internal/domain"
)

type mockStore struct {
	hashes map[string]map[string]string
	err    error
	calls  int
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if h, ok := m.hashes[key]; ok {
		return h, nil
	}
	return map[string]string{}, nil
}

func acmeStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{
		"retrieval:tenant:acme.example": {"id": "t-42", "name": "Acme"},
	}}
}

func TestFindByHost_Found(t *testing.T) {
	repo := New(acmeStore(), "retrieval:")

	rec, err := repo.FindByHost(context.Background(), "https://www.acme.example/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != domain.TenantID("t-42") {
		t.Errorf("id = %q, want t-42", rec.ID)
	}
	if rec.Host != "acme.example" {
		t.Errorf("host = %q, want acme.example", rec.Host)
	}
}

func TestFindByHost_SingleLookup(t *testing.T) {
	ms := acmeStore()
	repo := New(ms, "retrieval:")

	if _, err := repo.FindByHost(context.Background(), "HTTP://WWW.ACME.EXAMPLE"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.calls != 1 {
		t.Errorf("datastore calls = %d, want 1", ms.calls)
	}
}

func TestFindByHost_NotFound(t *testing.T) {
	repo := New(acmeStore(), "retrieval:")

	_, err := repo.FindByHost(context.Background(), "unknown.example")
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Fatalf("error = %v, want ErrTenantNotFound", err)
	}
}

func TestFindByHost_StoreError(t *testing.T) {
	repo := New(&mockStore{err: errors.New("connection refused")}, "retrieval:")

	_, err := repo.FindByHost(context.Background(), "acme.example")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
	if errors.Is(err, domain.ErrTenantNotFound) {
		t.Fatal("unavailability must not look like not-found")
	}
}

func TestCanonicalHost(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"acme.example", "acme.example"},
		{"https://acme.example", "acme.example"},
		{"http://www.acme.example/", "acme.example"},
		{"WWW.Acme.Example", "acme.example"},
		{"https://acme.example/path/page", "acme.example"},
		{"  acme.example  ", "acme.example"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := CanonicalHost(tc.in); got != tc.want {
			t.Errorf("CanonicalHost(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
