package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// ErrMapNotFound is returned by FileSource for rooms it does not list.
var ErrMapNotFound = errors.New("map not found")

// FileSource serves map details from a JSONC document keyed by room id:
//
//	{
//	  // the lobby
//	  "@/acme/hq/lobby": {"mapUrl": "https://maps.acme.org/lobby.json", "tags": ["staff"]},
//	}
type FileSource struct {
	maps map[string]MapDetails
}

// LoadFileSource reads a map details file.
func LoadFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map details file: %w", err)
	}
	return ParseFileSource(data)
}

// ParseFileSource parses a map details document.
func ParseFileSource(data []byte) (*FileSource, error) {
	var maps map[string]MapDetails
	if err := json.Unmarshal(jsonc.ToJSON(data), &maps); err != nil {
		return nil, fmt.Errorf("parse map details: %w", err)
	}
	return &FileSource{maps: maps}, nil
}

func (s *FileSource) FetchMapDetails(_ context.Context, organization, world, room string) (*MapDetails, error) {
	key := "@/" + organization + "/" + world + "/" + room
	details, ok := s.maps[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, key)
	}
	return &details, nil
}

// Len returns the number of maps in the file.
func (s *FileSource) Len() int { return len(s.maps) }
