package options

import (
	"fmt"
	"strings"
	"time"
)

// TransitionKind identifies the animation played when an image arrives from
// the network. Images served from a cache never animate.
type TransitionKind uint8

const (
	TransitionNone TransitionKind = iota
	TransitionFade
	TransitionFlipFromLeft
	TransitionFlipFromRight
	TransitionFlipFromTop
	TransitionFlipFromBottom
)

var transitionNames = map[TransitionKind]string{
	TransitionNone:           "none",
	TransitionFade:           "fade",
	TransitionFlipFromLeft:   "flipFromLeft",
	TransitionFlipFromRight:  "flipFromRight",
	TransitionFlipFromTop:    "flipFromTop",
	TransitionFlipFromBottom: "flipFromBottom",
}

// String returns the name of the transition kind
func (k TransitionKind) String() string {
	if name, ok := transitionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TransitionKind(%d)", uint8(k))
}

// ParseTransitionKind maps a name such as "fade" or "flipFromLeft" to its kind.
// Matching is case-insensitive.
func ParseTransitionKind(name string) (TransitionKind, error) {
	for kind, n := range transitionNames {
		if strings.EqualFold(n, name) {
			return kind, nil
		}
	}
	return TransitionNone, fmt.Errorf("unknown transition %q", name)
}

// Transition describes the animation rendered by the UI layer. Rendering is
// not done here.
type Transition struct {
	Kind     TransitionKind
	Duration time.Duration
}

// NoTransition is the default transition.
var NoTransition = Transition{}

// Fade returns a cross-fade lasting d.
func Fade(d time.Duration) Transition {
	return Transition{Kind: TransitionFade, Duration: d}
}

// Flip returns a flip transition of the given kind lasting d.
func Flip(kind TransitionKind, d time.Duration) Transition {
	return Transition{Kind: kind, Duration: d}
}

// String returns a compact description like "fade(250ms)"
func (t Transition) String() string {
	if t.Kind == TransitionNone {
		return t.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Duration)
}
