package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// IDPrefix is prepended to every allocated trade identifier.
const IDPrefix = "trade_"

// Allocator hands out trade identifiers from a counter that only moves forward.
// It is not safe for concurrent use; callers serialise access.
type Allocator struct {
	next uint64
}

func NewAllocator() *Allocator {
	return &Allocator{next: 1}
}

// Next returns the identifier for the current counter value and advances it by one.
func (a *Allocator) Next() string {
	n := a.next
	a.next++
	return FormatID(n)
}

// Peek returns the counter value the next call to Next will use.
func (a *Allocator) Peek() uint64 {
	return a.next
}

// Restore moves the counter to next. Moving backwards is refused.
func (a *Allocator) Restore(next uint64) error {
	if next < a.next {
		return fmt.Errorf("allocator: cannot rewind counter from %d to %d", a.next, next)
	}
	a.next = next
	return nil
}

func FormatID(n uint64) string {
	return IDPrefix + strconv.FormatUint(n, 10)
}

// ParseID extracts the counter value from an identifier produced by FormatID.
func ParseID(id string) (uint64, error) {
	if !strings.HasPrefix(id, IDPrefix) {
		return 0, fmt.Errorf("invalid trade id %q", id)
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(id, IDPrefix), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid trade id %q", id)
	}
	return n, nil
}
