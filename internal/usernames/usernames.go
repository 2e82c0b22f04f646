// package usernames enforces case-insensitive username uniqueness.
//
// The legacy tracker compared usernames byte-for-byte, which let "Alice" and
// "alice" coexist. The store treats those as the same account, so every
// candidate is checked here before it is written, whether it arrives in the
// bootstrap batch or one at a time afterwards. Both paths run through the
// same [Enforcer.Admit].
package usernames

import (
	"fmt"
	"strings"

	"github.com/desertthunder/tavs/internal/shared"
)

// Normalize returns the canonical comparison key for a username:
// surrounding whitespace removed and letters folded to lower case.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Verdict is the outcome of admitting one candidate username.
type Verdict struct {
	Accepted bool
	Existing string // conflicting spelling already held, when rejected
	Err      error  // nil when accepted; wraps ErrUsernameTaken or ErrUsernameCollision
}

// Reason returns the human-readable rejection reason, or "" when accepted.
func (v Verdict) Reason() string {
	if v.Err == nil {
		return ""
	}
	return v.Err.Error()
}

// Enforcer admits usernames against the set it has seen so far. Seed it from
// the store, then feed candidates through Admit; a batch checks against
// itself by reserving each accepted name before the next candidate.
type Enforcer struct {
	seen map[string]string // normalized key -> first spelling holding it
}

// NewEnforcer seeds an Enforcer with usernames already present in the store.
func NewEnforcer(existing []string) *Enforcer {
	e := &Enforcer{seen: make(map[string]string, len(existing))}
	for _, name := range existing {
		e.Reserve(name)
	}
	return e
}

// Admit decides whether candidate may join the set. It does not reserve the
// name; callers reserve after the insert succeeds.
func (e *Enforcer) Admit(candidate string) Verdict {
	trimmed := strings.TrimSpace(candidate)
	key := Normalize(candidate)

	if key == "" {
		return Verdict{Err: fmt.Errorf("%w: username is empty", shared.ErrInvalidInput)}
	}

	existing, held := e.seen[key]
	if !held {
		return Verdict{Accepted: true}
	}

	if existing == trimmed {
		return Verdict{
			Existing: existing,
			Err:      fmt.Errorf("%w: %q is already registered", shared.ErrUsernameTaken, trimmed),
		}
	}

	return Verdict{
		Existing: existing,
		Err: fmt.Errorf("%w: %q differs only by case from existing username %q",
			shared.ErrUsernameCollision, trimmed, existing),
	}
}

// Reserve records candidate as held so later candidates are checked against
// it. The first spelling holding a key keeps it.
func (e *Enforcer) Reserve(candidate string) {
	key := Normalize(candidate)
	if key == "" {
		return
	}
	if _, held := e.seen[key]; !held {
		e.seen[key] = strings.TrimSpace(candidate)
	}
}

// Resident reports whether the trimmed candidate exactly matches a spelling
// already held. The bootstrap importer uses this to recognize rows a
// previous interrupted run already committed.
func (e *Enforcer) Resident(candidate string) bool {
	existing, held := e.seen[Normalize(candidate)]
	return held && existing == strings.TrimSpace(candidate)
}

// Size returns the number of distinct usernames held.
func (e *Enforcer) Size() int {
	return len(e.seen)
}

// Admit checks one candidate against an existing set without retaining
// state. Incremental callers with the store contents in hand can use this
// directly; it applies exactly the rules the bootstrap batch applies.
func Admit(candidate string, existing []string) Verdict {
	return NewEnforcer(existing).Admit(candidate)
}
