// Package cacheid generates the unique, time-ordered cache ids spec.md §3
// requires for self-echo suppression and per-instance queue naming.
// Grounded on omeyang-XKit/pkg/util/xid, which wraps sonyflake/v2 for the
// same purpose and exposes a base36 string form; this package keeps only
// what the facade needs, without xid's retry/backward-clock machinery.
package cacheid

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/sony/sonyflake/v2"
)

var (
	mu          sync.Mutex
	sf          *sonyflake.Sonyflake
	initialized bool
)

func ensure() error {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return nil
	}
	s, err := sonyflake.New(sonyflake.Settings{})
	if err != nil {
		return fmt.Errorf("cacheid: initialize sonyflake: %w", err)
	}
	sf = s
	initialized = true
	return nil
}

// New returns a fresh, time-ordered cache id encoded as base36, suitable for
// use as a message header value, a queue-name suffix, and a consumer tag.
func New() (string, error) {
	if err := ensure(); err != nil {
		return "", err
	}
	id, err := sf.NextID()
	if err != nil {
		return "", fmt.Errorf("cacheid: generate id: %w", err)
	}
	return strconv.FormatInt(id, 36), nil
}
