package validators

import (
	"net/http/httptest"
	"testing"

	"github.com/farmarket/farmarket-backend/pkg/pagination"
)

func TestParsePaginationDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/products", nil)

	params, err := ParsePagination(r)
	if err != nil {
		t.Fatalf("ParsePagination: %v", err)
	}
	if params.Page != 1 || params.Limit != pagination.DefaultLimit {
		t.Fatalf("expected page 1 limit %d, got %+v", pagination.DefaultLimit, params)
	}
}

func TestParsePaginationReturnsNormalizedParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/products?page=3&limit=50", nil)

	params, err := ParsePagination(r)
	if err != nil {
		t.Fatalf("ParsePagination: %v", err)
	}
	if params != params.Normalize() {
		t.Fatalf("params must already be normalized, got %+v", params)
	}
	if params.Page != 3 || params.Limit != 50 {
		t.Fatalf("expected page 3 limit 50, got %+v", params)
	}
}

func TestParsePaginationRejectsOversizedLimit(t *testing.T) {
	r := httptest.NewRequest("GET", "/products?limit=5000", nil)

	if _, err := ParsePagination(r); err == nil {
		t.Fatal("expected an error for a limit above the cap")
	}
}
