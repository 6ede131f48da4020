package core

// OrderLog is the read-only historical order stream, addressable by zero-based position
type OrderLog interface {
	Len() int
	At(i int) *Order
}
