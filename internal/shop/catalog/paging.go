package catalog

// Page describes one page of a listing. Index is zero based.
type Page struct {
	Index int
	Total int
	Size  int
	Count int
}

// Paginate computes the page for index over count items. An index past
// the end is clamped to the last page; a negative one to the first.
func Paginate(count, size, index int) Page {
	if size <= 0 {
		size = 1
	}
	total := (count + size - 1) / size
	if total == 0 {
		total = 1
	}
	index = max(0, min(index, total-1))
	return Page{Index: index, Total: total, Size: size, Count: count}
}

// Offset is the first item on the page.
func (p Page) Offset() int { return p.Index * p.Size }

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Index > 0 }

// HasNext reports whether a following page exists.
func (p Page) HasNext() bool { return p.Offset()+p.Size < p.Count }

// Number is the one-based index shown to users.
func (p Page) Number() int { return p.Index + 1 }

// Listing is a page of items.
type Listing[T any] struct {
	Items []T
	Page  Page
}

// Empty reports whether the listing has no items at all.
func (l Listing[T]) Empty() bool { return l.Page.Count == 0 }
