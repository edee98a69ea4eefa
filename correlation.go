package goldenpath

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"k8s.io/utils/clock"
)

// correlationID builds the "<prefix>_<unixMillis>_<hash>" token for one run.
// The hash is a 32-bit rolling hash over the stable JSON encoding of the
// input, base-36 encoded. It is a grouping token for logs and results, not a
// collision-free identifier.
func correlationID[Type any](cl clock.PassiveClock, prefix string, input *Type) string {
	b, err := Marshal(input)
	if err != nil {
		// NoReturnErr: The token is best effort - fall back to a random
		// fragment rather than failing the run before it starts.
		return fmt.Sprintf("%s_%d_%s", prefix, cl.Now().UnixMilli(), uuid.New().String()[:8])
	}

	return fmt.Sprintf("%s_%d_%s", prefix, cl.Now().UnixMilli(), hashToken(b))
}

// hashToken rolls h = h*31 + b over the payload bytes with signed 32-bit
// wraparound, then base-36 encodes the absolute value.
func hashToken(b []byte) string {
	var h int32
	for _, c := range b {
		h = h*31 + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}

	return strconv.FormatInt(v, 36)
}
