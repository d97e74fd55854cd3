package messages

import (
	"errors"
	"fmt"
)

var (
	// ErrNoVariant is returned when an envelope carries no payload.
	ErrNoVariant = errors.New("no variant set")
	// ErrManyVariants is returned when an envelope carries more than one
	// payload.
	ErrManyVariants = errors.New("more than one variant set")
)

// picker counts the set variants of one envelope.
type picker[P any] struct {
	envelope string
	n        int
	value    P
}

func (p *picker[P]) add(set bool, v P) {
	if set {
		p.n++
		p.value = v
	}
}

func (p *picker[P]) result() (P, error) {
	var zero P
	switch p.n {
	case 0:
		return zero, fmt.Errorf("%s: %w", p.envelope, ErrNoVariant)
	case 1:
		return p.value, nil
	}
	return zero, fmt.Errorf("%s: %w", p.envelope, ErrManyVariants)
}

// Validator is implemented by every envelope. Codecs call it right after
// decoding so that malformed envelopes never reach a handler.
type Validator interface {
	Validate() error
}
