// © 2025 optrack authors. MIT License.
package optrack

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

// atomicCounter is a monotonically increasing uint64 sequence source
// shared by all shards of a LiveRegistry.
type atomicCounter struct {
	v atomic.Uint64
}

// next returns the next value, starting at 1 (0 is reserved to mean
// "never registered").
func (c *atomicCounter) next() uint64 { return c.v.Add(1) }

// powerOfTwoBucket labels ms into the power-of-two bucket it falls in
// ("0", "1", "2", "4", "8", ...), a cheap, allocation-light alternative to
// fixed linear histogram buckets.
func powerOfTwoBucket(ms int64) string {
	if ms <= 0 {
		return "0"
	}
	bucket := int64(1)
	for bucket < ms {
		bucket <<= 1
	}
	return strconv.FormatInt(bucket, 10)
}

// formatSlowLine renders a single slow-op warning line:
// "slow request <age> seconds old, received at <initiated_at>: <description>
// currently <current-or-state>".
func formatSlowLine(age time.Duration, initiatedAt time.Time, description, current string) string {
	return fmt.Sprintf("slow request %.0f seconds old, received at %s: %s currently %s",
		age.Seconds(), initiatedAt.Format(time.RFC3339), description, current)
}
