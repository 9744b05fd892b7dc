// Package address formats grid coordinates into the short human-readable
// labels the visualization client shows next to nodes, restaurants and
// orders (spec §1's "address-label formatting" external collaborator).
package address

import "strconv"

// ToAddress formats (x,y) as the "LR{x}{y}" label used throughout the
// original UI (e.g. (4,3) -> "LR43").
func ToAddress(x, y int) string {
	return "LR" + strconv.Itoa(x) + strconv.Itoa(y)
}
