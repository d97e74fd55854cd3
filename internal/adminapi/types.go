package adminapi

import (
	"context"
	"strconv"
	"strings"

	"github.com/davidmehren/workadventure/internal/messages"
)

// MapDetails describes a private room.
type MapDetails struct {
	MapURL     string   `json:"mapUrl"`
	PolicyType int      `json:"policy_type"`
	Tags       []string `json:"tags"`
}

// CharacterTexture is a custom avatar layer owned by a member.
type CharacterTexture struct {
	ID     int    `json:"id"`
	Level  int    `json:"level"`
	URL    string `json:"url"`
	Rights string `json:"rights"`
}

// MemberData is what the admin API knows about a member.
type MemberData struct {
	UUID     string             `json:"uuid"`
	Tags     []string           `json:"tags"`
	Textures []CharacterTexture `json:"textures"`
}

// MapSource resolves the details of private rooms.
type MapSource interface {
	FetchMapDetails(ctx context.Context, organization, world, room string) (*MapDetails, error)
}

const customTexturePrefix = "customCharacterTexture"

// MergeCharacterLayers resolves the layer names sent by a browser.
// Built-in layers keep an empty URL. Custom layers take the URL of the
// member texture with the same id and are dropped when none matches.
func MergeCharacterLayers(layers []string, textures []CharacterTexture) []messages.CharacterLayer {
	out := make([]messages.CharacterLayer, 0, len(layers))
	for _, layer := range layers {
		rest, custom := strings.CutPrefix(layer, customTexturePrefix)
		if !custom {
			out = append(out, messages.CharacterLayer{Name: layer})
			continue
		}
		id, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		for _, texture := range textures {
			if texture.ID == id {
				out = append(out, messages.CharacterLayer{Name: layer, URL: texture.URL})
				break
			}
		}
	}
	return out
}
