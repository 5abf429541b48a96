package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Situation is the session state a tool choice is made under. Identical
// situations must produce identical signatures across processes, so every
// transport computes them through this type rather than hashing ad hoc.
type Situation struct {
	// Intent is the classified user intent for the current turn.
	Intent string

	// PreviousTool is the tool invoked on the prior step, if any.
	PreviousTool string

	// SessionLength is the number of tool steps taken so far this session.
	SessionLength int
}

// Signature returns the deterministic context signature for the situation.
// Raw query text never enters the signature; only coarse session features
// do, which keeps the state space small and the stored keys free of user
// content.
func (s Situation) Signature() string {
	key := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(s.Intent)),
		strings.ToLower(strings.TrimSpace(s.PreviousTool)),
		fmt.Sprintf("%d", bucketLength(s.SessionLength)),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// bucketLength coarsens session length so long sessions do not each become
// a unique state nothing ever revisits.
func bucketLength(n int) int {
	switch {
	case n <= 0:
		return 0
	case n <= 2:
		return 1
	case n <= 5:
		return 2
	default:
		return 3
	}
}
