package models

// Turn pairs one user message with the assistant reply that followed it.
// Turns are derived for display only and never stored.
type Turn struct {
	User      string
	Assistant string
}

// PairTurns scans an ordered message log and pairs each user entry with the
// next assistant entry. A trailing unanswered user message pairs with an
// empty assistant side. System messages are skipped.
func PairTurns(msgs []Message) []Turn {
	var turns []Turn
	var lastUser *string
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			content := m.Content
			lastUser = &content
		case RoleAssistant:
			user := ""
			if lastUser != nil {
				user = *lastUser
			}
			turns = append(turns, Turn{User: user, Assistant: m.Content})
			lastUser = nil
		}
	}
	if lastUser != nil {
		turns = append(turns, Turn{User: *lastUser})
	}
	return turns
}
