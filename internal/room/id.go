package room

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRoomID is returned for identifiers that are neither public nor
// private room ids.
var ErrInvalidRoomID = errors.New("invalid room id")

// ID is a parsed room identifier.
//
// Public rooms look like "_/<instance>/<map url>" and need no lookup.
// Private rooms look like "@/<organization>/<world>/<room>" and get their
// map from the admin API.
type ID struct {
	Raw          string
	Anonymous    bool
	Instance     string
	MapURL       string
	Organization string
	World        string
	Room         string
}

func ParseID(raw string) (ID, error) {
	switch {
	case strings.HasPrefix(raw, "_/"):
		instance, mapURL, ok := strings.Cut(raw[2:], "/")
		if !ok || instance == "" || mapURL == "" {
			return ID{}, fmt.Errorf("%w: %q", ErrInvalidRoomID, raw)
		}
		return ID{Raw: raw, Anonymous: true, Instance: instance, MapURL: mapURL}, nil

	case strings.HasPrefix(raw, "@/"):
		parts := strings.SplitN(raw[2:], "/", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return ID{}, fmt.Errorf("%w: %q", ErrInvalidRoomID, raw)
		}
		return ID{Raw: raw, Organization: parts[0], World: parts[1], Room: parts[2]}, nil
	}
	return ID{}, fmt.Errorf("%w: %q", ErrInvalidRoomID, raw)
}

func (id ID) String() string { return id.Raw }
