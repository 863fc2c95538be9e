package handlers

import (
	"context"
	"strings"

	"keywarden/workflow"

	"github.com/bwmarrin/discordgo"
)

// Messenger implements workflow.Messenger over a Discord session. Chat ids
// are Discord user ids; messages go out as DMs. The MessageRef carries the
// DM channel id so edits do not need another channel lookup.
type Messenger struct {
	s *discordgo.Session
}

func NewMessenger(s *discordgo.Session) *Messenger {
	return &Messenger{s: s}
}

func (m *Messenger) Send(ctx context.Context, chatID, text string, actions ...workflow.Action) (workflow.MessageRef, error) {
	ch, err := m.s.UserChannelCreate(chatID)
	if err != nil {
		return workflow.MessageRef{}, err
	}

	msg, err := m.s.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Content:    text,
		Components: actionRows(actions),
	})
	if err != nil {
		return workflow.MessageRef{}, err
	}
	return workflow.MessageRef{ChatID: ch.ID, MessageID: msg.ID}, nil
}

func (m *Messenger) Edit(ctx context.Context, ref workflow.MessageRef, text string, actions ...workflow.Action) error {
	components := actionRows(actions)
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := m.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    ref.ChatID,
		ID:         ref.MessageID,
		Content:    &text,
		Components: &components,
	})
	return err
}

func (m *Messenger) DisplayName(chatID string) string {
	u, err := m.s.User(chatID)
	if err != nil {
		return chatID
	}
	return u.Username
}

// actionRows renders actions one button per row, the way the original bot
// laid out its choice keyboards.
func actionRows(actions []workflow.Action) []discordgo.MessageComponent {
	if len(actions) == 0 {
		return nil
	}
	var rows []discordgo.MessageComponent
	for _, a := range actions {
		rows = append(rows, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    a.Label,
					Style:    buttonStyle(a.ID),
					CustomID: a.ID,
				},
			},
		})
	}
	return rows
}

func buttonStyle(customID string) discordgo.ButtonStyle {
	switch {
	case strings.HasPrefix(customID, "approve:"), customID == "regconfirm":
		return discordgo.SuccessButton
	case strings.HasPrefix(customID, "deny:"), strings.HasPrefix(customID, "return:"):
		return discordgo.DangerButton
	default:
		return discordgo.SecondaryButton
	}
}
