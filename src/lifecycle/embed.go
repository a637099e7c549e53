package lifecycle

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/swapboard/swapboard/src/types"
)

// StatusFieldName identifies the embed field the coordinator owns. The
// lead message is located by scanning for this field, so renaming it
// orphans every existing post.
const StatusFieldName = "Status"

var statusColors = map[string]int{
	types.StatusAvailable: 0x2ECC71,
	types.StatusPending:   0xF1C40F,
	types.StatusCompleted: 0x95A5A6,
}

var statusLabels = map[string]string{
	types.StatusAvailable: "Available",
	types.StatusPending:   "Pending",
	types.StatusCompleted: "Completed",
}

// StatusLabel is the human-facing form of a status, also used as the forum
// tag name.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// IsStatusLabel reports whether a tag name matches any status label,
// case-insensitively.
func IsStatusLabel(name string) bool {
	for _, label := range statusLabels {
		if strings.EqualFold(name, label) {
			return true
		}
	}
	return false
}

func statusColor(status string) int {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return 0x95A5A6
}

// buildStatusEmbed renders the lead-message embed for a post.
func buildStatusEmbed(post *types.ExchangePost, authorName, description string) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: StatusFieldName, Value: StatusLabel(post.Status), Inline: true},
	}
	if post.Kind != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Kind", Value: post.Kind, Inline: true})
	}
	if post.Category != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Category", Value: post.Category, Inline: true})
	}
	if authorName == "" {
		authorName = post.AuthorID
	}
	return &discordgo.MessageEmbed{
		Title:       post.Title,
		Description: description,
		Color:       statusColor(post.Status),
		Fields:      fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Posted by %s", authorName),
		},
	}
}

// findStatusEmbed returns the index of the embed carrying the status
// field, or -1.
func findStatusEmbed(embeds []*discordgo.MessageEmbed) int {
	for i, embed := range embeds {
		for _, f := range embed.Fields {
			if strings.EqualFold(f.Name, StatusFieldName) {
				return i
			}
		}
	}
	return -1
}

// rewriteStatus updates the status field value and accent color in place.
func rewriteStatus(embed *discordgo.MessageEmbed, status string) {
	for _, f := range embed.Fields {
		if strings.EqualFold(f.Name, StatusFieldName) {
			f.Value = StatusLabel(status)
		}
	}
	embed.Color = statusColor(status)
}

// controlButtons are the component rows attached to a fresh post.
func controlButtons(contactID, availID, claimID, closeID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Contact poster", Style: discordgo.PrimaryButton, CustomID: contactID},
				discordgo.Button{Label: "Still available?", Style: discordgo.SecondaryButton, CustomID: availID},
				discordgo.Button{Label: "Mark fulfilled", Style: discordgo.SuccessButton, CustomID: claimID},
				discordgo.Button{Label: "Close", Style: discordgo.DangerButton, CustomID: closeID},
			},
		},
	}
}
