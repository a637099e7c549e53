package discord

import (
	"fmt"
	"strings"
)

// Namespace prefixes every component custom-id owned by this bot, so the
// router can ignore foreign components cheaply.
const Namespace = "swap"

// Action identifies the interaction family a component belongs to.
type Action string

const (
	ActionContact      Action = "contact"
	ActionAvailability Action = "avail"
	ActionClaim        Action = "claim"
	ActionClose        Action = "close"
)

// Sub-actions within an action family.
const (
	SubOpen   = "open"
	SubSubmit = "submit"
	SubPick   = "pick"
)

// Payload is the structured content of a component custom-id. Either the
// ID fields or Token is set: tokens reference a server-side payload in the
// short-lived store, which keeps free-form text out of the custom-id
// entirely.
type Payload struct {
	Action    Action
	Sub       string
	PosterID  string
	ClaimerID string
	Token     string
}

var validActions = map[Action]bool{
	ActionContact:      true,
	ActionAvailability: true,
	ActionClaim:        true,
	ActionClose:        true,
}

// EncodeCustomID serializes a payload. Every variable field is validated
// to its shape (snowflake digits or UUID characters), so the separator can
// never collide with content.
func EncodeCustomID(p Payload) (string, error) {
	if !validActions[p.Action] {
		return "", fmt.Errorf("custom id: unknown action %q", p.Action)
	}
	if p.Sub == "" {
		return "", fmt.Errorf("custom id: missing sub-action")
	}
	if p.Token != "" {
		if !isToken(p.Token) {
			return "", fmt.Errorf("custom id: malformed token")
		}
		return strings.Join([]string{Namespace, string(p.Action), p.Sub, "t", p.Token}, ":"), nil
	}
	if !isSnowflake(p.PosterID) {
		return "", fmt.Errorf("custom id: malformed poster id %q", p.PosterID)
	}
	parts := []string{Namespace, string(p.Action), p.Sub, p.PosterID}
	if p.ClaimerID != "" {
		if !isSnowflake(p.ClaimerID) {
			return "", fmt.Errorf("custom id: malformed claimer id %q", p.ClaimerID)
		}
		parts = append(parts, p.ClaimerID)
	}
	return strings.Join(parts, ":"), nil
}

// DecodeCustomID parses a custom-id previously produced by EncodeCustomID.
// The ok result is false for ids outside our namespace or failing shape
// validation.
func DecodeCustomID(id string) (Payload, bool) {
	parts := strings.Split(id, ":")
	if len(parts) < 4 || parts[0] != Namespace {
		return Payload{}, false
	}
	p := Payload{Action: Action(parts[1]), Sub: parts[2]}
	if !validActions[p.Action] || p.Sub == "" {
		return Payload{}, false
	}
	rest := parts[3:]
	if rest[0] == "t" {
		if len(rest) != 2 || !isToken(rest[1]) {
			return Payload{}, false
		}
		p.Token = rest[1]
		return p, true
	}
	if !isSnowflake(rest[0]) {
		return Payload{}, false
	}
	p.PosterID = rest[0]
	if len(rest) == 2 {
		if !isSnowflake(rest[1]) {
			return Payload{}, false
		}
		p.ClaimerID = rest[1]
	} else if len(rest) > 2 {
		return Payload{}, false
	}
	return p, true
}

// Ours reports whether a custom-id belongs to this bot's namespace.
func Ours(id string) bool {
	return strings.HasPrefix(id, Namespace+":")
}

func isSnowflake(s string) bool {
	if len(s) == 0 || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isToken(s string) bool {
	if len(s) == 0 || len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r == '-':
		default:
			return false
		}
	}
	return true
}
