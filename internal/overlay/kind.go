package overlay

import "fmt"

// Kind is what an overlay group represents.
type Kind int

const (
	// KindSelection is an ad-hoc selection the user has not tagged yet.
	KindSelection Kind = iota
	// KindTag is a persisted annotation.
	KindTag
)

func (k Kind) String() string {
	switch k {
	case KindSelection:
		return "selection"
	case KindTag:
		return "tag"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ControlLabel is the text of the floating control for k.
func (k Kind) ControlLabel() string {
	switch k {
	case KindSelection:
		return "tag"
	case KindTag:
		return "remove"
	}
	return ""
}

// ParseKind parses the String form of a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "selection":
		return KindSelection, nil
	case "tag":
		return KindTag, nil
	}
	return 0, fmt.Errorf("unknown overlay kind: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
