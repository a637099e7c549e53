package discord

import "github.com/bwmarrin/discordgo"

// IsModerator reports whether the interaction member may use the force
// paths: either the configured moderator role or Manage Messages.
func IsModerator(i *discordgo.InteractionCreate, moderatorRoleID string) bool {
	if i.Member == nil {
		return false
	}
	if i.Member.Permissions&discordgo.PermissionManageMessages != 0 {
		return true
	}
	if moderatorRoleID == "" {
		return false
	}
	for _, role := range i.Member.Roles {
		if role == moderatorRoleID {
			return true
		}
	}
	return false
}

// InteractionUserID returns the acting user's ID for both guild and DM
// interactions.
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// InteractionUserName returns the acting user's display name.
func InteractionUserName(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.Username
	}
	if i.User != nil {
		return i.User.Username
	}
	return ""
}
