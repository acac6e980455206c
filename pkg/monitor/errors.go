package monitor

import (
	"errors"
	"fmt"
)

// Kind tells why a monitor stopped.
type Kind int

const (
	// KindConfig means the rig configuration was rejected.
	KindConfig Kind = iota + 1

	// KindOutlet means the outlet could not be reached or selected at startup.
	KindOutlet

	// KindQuery means a pool query failed under the halt policy.
	KindQuery

	// KindFailsafe means the consecutive restart limit was reached.
	KindFailsafe
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindOutlet:
		return "outlet"
	case KindQuery:
		return "query"
	case KindFailsafe:
		return "failsafe"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrFailsafe is wrapped by every KindFailsafe error.
var ErrFailsafe = errors.New("maximum consecutive restarts reached")

// Error is a fatal monitor failure for one rig.
type Error struct {
	Rig  string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rig %s: %s: %v", e.Rig, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind, true
	}
	return 0, false
}
