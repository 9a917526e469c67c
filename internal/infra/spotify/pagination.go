package spotify

// fetchAllPages walks a paged endpoint's "next" chain starting at initial
// and returns all pages in arrival order. The first failed page fetch aborts
// the walk and discards everything fetched so far: callers must never act on
// a partially assembled listing.
func fetchAllPages[T any](initial string, fetchPage func(url string) (pagingObject[T], error)) ([]pagingObject[T], error) {
	var pages []pagingObject[T]
	current := initial
	for current != "" {
		page, err := fetchPage(current)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
		current = page.Next
	}
	return pages, nil
}

// flattenPages concatenates the items of all pages in page order.
func flattenPages[T any](pages []pagingObject[T]) []T {
	var items []T
	for _, page := range pages {
		items = append(items, page.Items...)
	}
	return items
}
