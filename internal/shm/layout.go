package shm

import "fmt"

// maxAlign is the largest supported alignment requirement, one page.
const maxAlign = 4096

// Layout describes an allocation request: total size in bytes plus the
// alignment requirement of the region start.
type Layout struct {
	Size  uint64
	Align uint64
}

// NewLayout validates and builds a layout. Size must be positive; Align must
// be a power of two no larger than a page.
func NewLayout(size, align uint64) (Layout, error) {
	l := Layout{Size: size, Align: align}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate checks the layout invariants.
func (l Layout) Validate() error {
	if l.Size == 0 {
		return fmt.Errorf("%w: zero size", ErrUnsupportedLayout)
	}
	if l.Align == 0 || l.Align&(l.Align-1) != 0 {
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrUnsupportedLayout, l.Align)
	}
	if l.Align > maxAlign {
		return fmt.Errorf("%w: alignment %d exceeds page size", ErrUnsupportedLayout, l.Align)
	}
	return nil
}

// alignUp rounds x up to the next multiple of align (a power of two).
func alignUp(x, align uint64) uint64 {
	return (x + align - 1) &^ (align - 1)
}
