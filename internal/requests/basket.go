package requests

import "sort"

// Basket is the pre-submission staging bag, keyed by part number. It lives
// on the client and travels with every stage and submit call; the server
// holds no session state for it.
type Basket map[string]int

// Add increments the staged quantity for a part number by one scan.
func (b Basket) Add(partNumber string) {
	b[partNumber]++
}

// Empty reports whether nothing is staged.
func (b Basket) Empty() bool {
	return len(b) == 0
}

// ItemCount returns the total staged quantity across all parts.
func (b Basket) ItemCount() int {
	total := 0
	for _, qty := range b {
		total += qty
	}
	return total
}

// PartNumbers returns the staged part numbers in stable order.
func (b Basket) PartNumbers() []string {
	numbers := make([]string, 0, len(b))
	for pn := range b {
		numbers = append(numbers, pn)
	}
	sort.Strings(numbers)
	return numbers
}
