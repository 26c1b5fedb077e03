// Package handle implements the ownership lifecycle shared by every
// resource-bearing value in the substrate: unique ownership, counted shared
// loans, exclusive mutable loans, and single-use moves into consuming calls.
package handle

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrNullHandle reports an operation on a handle in the null state.
	ErrNullHandle = errors.New("handle: null handle")
	// ErrBorrowConflict reports a loan that would violate exclusivity.
	ErrBorrowConflict = errors.New("handle: borrow conflict")
	// ErrSpentMove reports a second consumption of a moved value.
	ErrSpentMove = errors.New("handle: moved value already consumed")
	// ErrNotClonable reports a Clone on a type without the clone capability.
	ErrNotClonable = errors.New("handle: resource is not clonable")
)

// exclusiveBorrow marks the borrow counter while a mutable loan is live.
const exclusiveBorrow = -1

// Owned is a uniquely-owning handle over a resource of type T. An Owned
// handle is always in exactly one of two states: live (holds a resource) or
// null (empty). Release and Move transition a live handle to null; both are
// safe on an already-null handle.
//
// Ownership operations (Move, Release) follow single-owner discipline and
// must not race each other. Loans may be taken and ended from any goroutine.
type Owned[T any] struct {
	res     *T
	drop    func(*T)
	borrows atomic.Int32
}

// New wraps a resource into an Owned handle. drop is the type-specific
// teardown invoked exactly once when the live handle is released; it may be
// nil for resources without teardown. A nil resource yields a null handle,
// matching the convention that failed constructors produce null.
func New[T any](res *T, drop func(*T)) *Owned[T] {
	if res == nil {
		return &Owned[T]{}
	}
	return &Owned[T]{res: res, drop: drop}
}

// Null returns a handle in the null state.
func Null[T any]() *Owned[T] {
	return &Owned[T]{}
}

// IsNull reports whether the handle is in the null state.
func (o *Owned[T]) IsNull() bool {
	return o == nil || o.res == nil
}

// Loan takes a shared, non-owning view of the resource. Multiple shared
// loans may be live at once; the view is valid until End is called and must
// not outlive the owner. Loaning a null handle or a handle with a live
// mutable loan fails.
func (o *Owned[T]) Loan() (*Loan[T], error) {
	if o.IsNull() {
		return nil, ErrNullHandle
	}
	for {
		n := o.borrows.Load()
		if n == exclusiveBorrow {
			return nil, ErrBorrowConflict
		}
		if o.borrows.CompareAndSwap(n, n+1) {
			return &Loan[T]{owner: o}, nil
		}
	}
}

// LoanMut takes the exclusive mutable view of the resource. It fails while
// any shared or mutable loan is live.
func (o *Owned[T]) LoanMut() (*MutLoan[T], error) {
	if o.IsNull() {
		return nil, ErrNullHandle
	}
	if !o.borrows.CompareAndSwap(0, exclusiveBorrow) {
		return nil, ErrBorrowConflict
	}
	return &MutLoan[T]{owner: o}, nil
}

// Move transfers ownership out of the handle for passing into a consuming
// call. The handle is null as soon as Move returns, regardless of what the
// consumer later does with the moved value.
func (o *Owned[T]) Move() *Moved[T] {
	if o == nil {
		return &Moved[T]{}
	}
	res, drop := o.res, o.drop
	o.res, o.drop = nil, nil
	if res == nil {
		return &Moved[T]{}
	}
	return &Moved[T]{res: res, drop: drop}
}

// Release destroys the resource and transitions the handle to null.
// Releasing a null handle is a no-op, so Release is idempotent.
func (o *Owned[T]) Release() {
	if o.IsNull() {
		return
	}
	res, drop := o.res, o.drop
	o.res, o.drop = nil, nil
	if drop != nil {
		drop(res)
	}
}

// Borrows returns the number of live shared loans, or -1 while a mutable
// loan is live. Intended for diagnostics and tests.
func (o *Owned[T]) Borrows() int {
	if o == nil {
		return 0
	}
	return int(o.borrows.Load())
}

// Loan is a shared, non-owning view of an owned resource. Access goes
// through Value; the view ends with End.
type Loan[T any] struct {
	owner *Owned[T]
	ended atomic.Bool
}

// Value returns the loaned resource. The pointer must not be retained past
// End; clone the resource to keep it beyond the loan scope.
func (l *Loan[T]) Value() *T {
	return l.owner.res
}

// End returns the loan to the owner. Ending twice is a no-op.
func (l *Loan[T]) End() {
	if l == nil || !l.ended.CompareAndSwap(false, true) {
		return
	}
	l.owner.borrows.Add(-1)
}

// MutLoan is the exclusive mutable view of an owned resource.
type MutLoan[T any] struct {
	owner *Owned[T]
	ended atomic.Bool
}

// Value returns the loaned resource for mutation.
func (l *MutLoan[T]) Value() *T {
	return l.owner.res
}

// End releases exclusivity. Ending twice is a no-op.
func (l *MutLoan[T]) End() {
	if l == nil || !l.ended.CompareAndSwap(false, true) {
		return
	}
	l.owner.borrows.Store(0)
}

// Moved is a single-use ownership-transfer marker produced by Move. The
// consuming call takes the resource with Take; if the call fails before
// taking ownership it must Discard to avoid leaking the resource. Either
// way the original handle is already null.
type Moved[T any] struct {
	res   *T
	drop  func(*T)
	spent atomic.Bool
}

// Take consumes the moved value, returning the resource and its teardown.
// A second Take, or a Take on a move of a null handle, fails.
func (m *Moved[T]) Take() (*T, func(*T), error) {
	if m == nil || m.res == nil {
		return nil, nil, ErrSpentMove
	}
	if !m.spent.CompareAndSwap(false, true) {
		return nil, nil, ErrSpentMove
	}
	res, drop := m.res, m.drop
	m.res, m.drop = nil, nil
	return res, drop, nil
}

// Discard destroys a moved value that was never taken. No-op if the value
// was already taken or discarded.
func (m *Moved[T]) Discard() {
	if m == nil || m.res == nil {
		return
	}
	if !m.spent.CompareAndSwap(false, true) {
		return
	}
	res, drop := m.res, m.drop
	m.res, m.drop = nil, nil
	if drop != nil {
		drop(res)
	}
}

// Cloner is the capability interface for resources supporting Clone. The
// semantics of CloneRef are type-specific; shared-storage types return a
// reference-counted shallow clone, never a deep copy.
type Cloner[T any] interface {
	CloneRef() *T
}

// Clone produces a second Owned handle from a loaned view of a clonable
// resource. The clone carries the same teardown as the original owner and
// may be released independently. Non-clonable types fail with ErrNotClonable.
func Clone[T any](l *Loan[T]) (*Owned[T], error) {
	if l == nil || l.owner.IsNull() {
		return nil, ErrNullHandle
	}
	c, ok := any(l.owner.res).(Cloner[T])
	if !ok {
		return nil, ErrNotClonable
	}
	return New(c.CloneRef(), l.owner.drop), nil
}
