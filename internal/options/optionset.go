package options

import (
	"fmt"
	"strings"
)

// OptionSet is the nested options bag carried by a KindOptions item. The
// resolver treats it as opaque; consumers test individual bits.
type OptionSet uint32

const (
	LowPriority OptionSet = 1 << iota
	ContinueInBackground
	ProgressiveDownload
	RetryFailed
	HandleCookies
)

var optionNames = []struct {
	bit  OptionSet
	name string
}{
	{LowPriority, "lowPriority"},
	{ContinueInBackground, "continueInBackground"},
	{ProgressiveDownload, "progressiveDownload"},
	{RetryFailed, "retryFailed"},
	{HandleCookies, "handleCookies"},
}

// Has reports whether every bit of o is set in s.
func (s OptionSet) Has(o OptionSet) bool {
	return s&o == o
}

// With returns s with the bits of o added.
func (s OptionSet) With(o OptionSet) OptionSet {
	return s | o
}

// String joins the names of the set bits with "|".
func (s OptionSet) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	rest := s
	for _, opt := range optionNames {
		if s.Has(opt.bit) {
			parts = append(parts, opt.name)
			rest &^= opt.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseOption maps a single option name to its bit.
func ParseOption(name string) (OptionSet, error) {
	for _, opt := range optionNames {
		if strings.EqualFold(opt.name, name) {
			return opt.bit, nil
		}
	}
	return 0, fmt.Errorf("unknown option %q", name)
}
