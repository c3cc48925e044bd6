package ids

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	ContainerPrefix = "P"
	ClientPrefix    = "C"
)

func ContainerID(n uint64) string { return fmt.Sprintf("%s%06d", ContainerPrefix, n) }

func ClientID(n uint64) string { return fmt.Sprintf("%s%06d", ClientPrefix, n) }

func ParseUintAfterPrefix(prefix, id string) (uint64, bool) {
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.ParseUint(id[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextAfter returns the smallest counter value that cannot collide with any
// of the given ids. Ids without the prefix are ignored.
func NextAfter(counter uint64, prefix string, existing []string) uint64 {
	for _, id := range existing {
		if n, ok := ParseUintAfterPrefix(prefix, id); ok && n > counter {
			counter = n
		}
	}
	return counter
}
