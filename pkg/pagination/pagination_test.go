package pagination

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name      string
		in        Params
		wantPage  int
		wantLimit int
	}{
		{"defaults", Params{}, 1, DefaultLimit},
		{"negative page", Params{Page: -2, Limit: 10}, 1, 10},
		{"capped limit", Params{Page: 3, Limit: 500}, 3, MaxLimit},
		{"passthrough", Params{Page: 2, Limit: 25}, 2, 25},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalize()
			if got.Page != tc.wantPage || got.Limit != tc.wantLimit {
				t.Fatalf("Normalize() = %+v, want page=%d limit=%d", got, tc.wantPage, tc.wantLimit)
			}
		})
	}
}

func TestOffsetAndMeta(t *testing.T) {
	p := Params{Page: 3, Limit: 20}
	if p.Offset() != 40 {
		t.Fatalf("Offset() = %d, want 40", p.Offset())
	}

	meta := p.Meta(45)
	if meta.CurrentPage != 3 || meta.TotalPages != 3 || meta.TotalItems != 45 || meta.ItemsPerPage != 20 {
		t.Fatalf("Meta(45) = %+v", meta)
	}

	empty := Params{Page: 1, Limit: 20}.Meta(0)
	if empty.TotalPages != 1 {
		t.Fatalf("empty result must still report one page, got %d", empty.TotalPages)
	}
}
