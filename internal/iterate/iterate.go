// Package iterate drives lazy traversal of paginated provider collections.
//
// A PageFunc returns one page and the token for the next one. Pages feeds
// every item to a visitor, waiting for each visit to return before moving
// on, and only requests the next page once the current page has been
// fully visited. Nothing is buffered beyond the page in hand.
package iterate

import (
	"context"
	"fmt"
	"iter"
)

// Page is one page of a provider collection. Next is empty on the last page.
type Page[T any] struct {
	Items []T
	Next  string
}

// PageFunc fetches the page identified by token. The first call gets "".
type PageFunc[T any] func(ctx context.Context, token string) (Page[T], error)

// Visitor is called once per item.
type Visitor[T any] func(ctx context.Context, item T) error

// Pages visits every item of the collection in provider order.
func Pages[T any](ctx context.Context, fetch PageFunc[T], visit Visitor[T]) error {
	for item, err := range Seq(ctx, fetch) {
		if err != nil {
			return err
		}
		if err := visit(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// Seq returns the collection as a single-use pull sequence. The producer
// advances only when the consumer asks for the next value, so a slow
// consumer holds back page fetches. A fetch error is yielded once as the
// final pair.
func Seq[T any](ctx context.Context, fetch PageFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		token := ""
		seen := make(map[string]bool)
		for page := 0; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			p, err := fetch(ctx, token)
			if err != nil {
				yield(zero, fmt.Errorf("fetch page %d: %w", page, err))
				return
			}
			for _, item := range p.Items {
				if !yield(item, nil) {
					return
				}
			}
			if p.Next == "" {
				return
			}
			// A provider that hands back a token it already gave would
			// loop forever.
			if seen[p.Next] {
				yield(zero, fmt.Errorf("fetch page %d: repeated continuation token %q", page+1, p.Next))
				return
			}
			seen[p.Next] = true
			token = p.Next
		}
	}
}

// Collect materializes the whole collection.
func Collect[T any](ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	var out []T
	err := Pages(ctx, fetch, func(_ context.Context, item T) error {
		out = append(out, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Slice serves items from memory as a single page. Useful for collections
// the provider returns in one response.
func Slice[T any](items []T) PageFunc[T] {
	return func(context.Context, string) (Page[T], error) {
		return Page[T]{Items: items}, nil
	}
}
