package adminapi

import (
	"context"
	"fmt"
	"net/url"
)

// FetchMapDetails returns the map of a private room.
func (c *Client) FetchMapDetails(ctx context.Context, organization, world, room string) (*MapDetails, error) {
	query := url.Values{}
	query.Set("organizationSlug", organization)
	query.Set("worldSlug", world)
	query.Set("roomSlug", room)

	var details MapDetails
	if err := c.get(ctx, "/api/map", query, &details); err != nil {
		return nil, fmt.Errorf("fetch map details: %w", err)
	}
	return &details, nil
}

// FetchMemberData returns the tags and textures of a member.
func (c *Client) FetchMemberData(ctx context.Context, uuid string) (*MemberData, error) {
	var member MemberData
	if err := c.get(ctx, "/api/membership/"+url.PathEscape(uuid), nil, &member); err != nil {
		return nil, fmt.Errorf("fetch member data: %w", err)
	}
	return &member, nil
}
