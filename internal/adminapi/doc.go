// Package adminapi talks to the optional administration service that
// knows private maps and members.
//
// Two lookups are used: map details for "@/" rooms, on both tiers, and
// member data (tags and custom textures) at the gateway. Deployments
// without an admin service can serve map details from a JSONC file with
// FileSource.
package adminapi
