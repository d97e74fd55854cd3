package geometry

import (
	"errors"
	"fmt"
)

// ErrUnexpectedDirection is returned when a direction outside the four
// facing values is decoded.
var ErrUnexpectedDirection = errors.New("unexpected direction")

// Direction is the way an avatar faces.
type Direction uint8

const (
	Down Direction = iota
	Up
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// ParseDirection converts the wire name of a direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnexpectedDirection, s)
}

func (d Direction) MarshalText() ([]byte, error) {
	if d > Right {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedDirection, uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
