// Package category holds the category forest helpers and the cascading
// flyout menu used to pick a leaf category.
package category

import "github.com/pydea-rs/omen-creator-panel/internal/domain"

// Walk visits the forest depth-first, parents before children. Returning
// false from fn stops the walk.
func Walk(roots []domain.Category, fn func(c domain.Category, depth int) bool) {
	walk(roots, 0, fn)
}

func walk(nodes []domain.Category, depth int, fn func(domain.Category, int) bool) bool {
	for _, n := range nodes {
		if !fn(n, depth) {
			return false
		}
		if !walk(n.SubCategories, depth+1, fn) {
			return false
		}
	}
	return true
}

// Find returns the first node with the given id in depth-first order.
func Find(roots []domain.Category, id int64) (domain.Category, bool) {
	var (
		found domain.Category
		ok    bool
	)
	Walk(roots, func(c domain.Category, _ int) bool {
		if c.ID == id {
			found, ok = c, true
			return false
		}
		return true
	})
	return found, ok
}

// FindName resolves an id to its display name anywhere in the forest.
func FindName(roots []domain.Category, id int64) (string, bool) {
	c, ok := Find(roots, id)
	return c.Name, ok
}

// PathTo returns the chain of nodes from a root down to id, inclusive.
func PathTo(roots []domain.Category, id int64) []domain.Category {
	for _, r := range roots {
		if r.ID == id {
			return []domain.Category{r}
		}
		if sub := PathTo(r.SubCategories, id); sub != nil {
			return append([]domain.Category{r}, sub...)
		}
	}
	return nil
}

// Leaves returns every selectable node in depth-first order.
func Leaves(roots []domain.Category) []domain.Category {
	var out []domain.Category
	Walk(roots, func(c domain.Category, _ int) bool {
		if c.IsLeaf() {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Depth returns the number of levels in the forest.
func Depth(roots []domain.Category) int {
	max := 0
	Walk(roots, func(_ domain.Category, d int) bool {
		if d+1 > max {
			max = d + 1
		}
		return true
	})
	return max
}

// IsSelectable reports whether id names a leaf of the forest.
func IsSelectable(roots []domain.Category, id int64) bool {
	c, ok := Find(roots, id)
	return ok && c.IsLeaf()
}
