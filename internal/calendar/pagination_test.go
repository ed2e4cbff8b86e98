package calendar

import "testing"

func TestPaginate_Basic(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	page := Paginate(items, 1, 5)

	if len(page.Items) != 5 {
		t.Fatalf("expected 5 items on page 1, got %d", len(page.Items))
	}
	if page.HasPrev {
		t.Fatalf("expected HasPrev=false on first page")
	}
	if !page.HasNext {
		t.Fatalf("expected HasNext=true on first page")
	}
	if page.Total != len(items) {
		t.Fatalf("expected Total=%d, got %d", len(items), page.Total)
	}
}

func TestPaginate_LastPage(t *testing.T) {
	page := Paginate([]int{1, 2, 3, 4, 5, 6}, 2, 4)

	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items on last page, got %d", len(page.Items))
	}
	if !page.HasPrev || page.HasNext {
		t.Fatalf("expected HasPrev=true HasNext=false, got %+v", page)
	}
}

func TestPaginate_DefaultsAndCap(t *testing.T) {
	items := make([]int, 250)

	page := Paginate(items, 0, 0)
	if page.Page != 1 || page.PageSize != defaultPageSize {
		t.Fatalf("expected defaults, got page=%d size=%d", page.Page, page.PageSize)
	}

	page = Paginate(items, 1, 1000)
	if page.PageSize != maxPageSize || len(page.Items) != maxPageSize {
		t.Fatalf("expected page size capped at %d, got %d", maxPageSize, page.PageSize)
	}
}

func TestPaginate_Empty(t *testing.T) {
	var items []int
	page := Paginate(items, 3, 10)

	if page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", page.Items)
	}
	if page.HasNext {
		t.Fatalf("expected no next page for empty list")
	}
}

func TestPageOf(t *testing.T) {
	page := PageOf([]string{"c", "d"}, 2, 2, 5)
	if !page.HasPrev || !page.HasNext || page.Total != 5 {
		t.Fatalf("unexpected page: %+v", page)
	}

	last := PageOf([]string{"e"}, 3, 2, 5)
	if last.HasNext {
		t.Fatalf("expected HasNext=false on last page, got %+v", last)
	}

	empty := PageOf[string](nil, 0, 0, 0)
	if empty.Items == nil || empty.Page != 1 || empty.PageSize != defaultPageSize {
		t.Fatalf("unexpected empty page: %+v", empty)
	}
}

func TestPageBounds(t *testing.T) {
	page, size, offset := PageBounds(3, 500)
	if page != 3 || size != maxPageSize || offset != 2*maxPageSize {
		t.Fatalf("got (%d, %d, %d)", page, size, offset)
	}
}
