// Package handlers connects Discord events to the custody workflow. Users
// talk to the bot in DMs; the approver gets actionable messages with
// approve/deny buttons, and every button press lands in InteractionCreate.
package handlers

import (
	"context"
	"errors"
	"log"
	"strings"

	"keywarden/i18n"
	"keywarden/store"
	"keywarden/workflow"

	"github.com/bwmarrin/discordgo"
)

type Handler struct {
	orch  *workflow.Orchestrator
	admin store.Admin
	convs *conversations
}

func New(orch *workflow.Orchestrator, admin store.Admin) *Handler {
	return &Handler{orch: orch, admin: admin, convs: newConversations()}
}

func Ready(s *discordgo.Session, r *discordgo.Ready) {
	err := s.UpdateGameStatus(0, "Учёт ключей")
	if err != nil {
		log.Printf("Error updating game status: %v", err)
	}
}

// MessageCreate drives the DM conversations: commands start a flow, plain
// messages answer the current step.
func (h *Handler) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.Bot || m.GuildID != "" {
		return
	}
	ctx := context.Background()
	chatID := m.Author.ID
	text := strings.TrimSpace(m.Content)

	if strings.HasPrefix(text, "!") {
		h.handleCommand(ctx, s, m, chatID, text)
		return
	}

	conv := h.convs.get(chatID)
	switch conv.step {
	case stepRegisterName:
		conv.name = text
		conv.step = stepRegisterSurname
		h.reply(s, m, i18n.T("RegisterAskSurname"))
	case stepRegisterSurname:
		conv.surname = text
		conv.step = stepRegisterPhone
		h.reply(s, m, i18n.T("RegisterAskPhone"))
	case stepRegisterPhone:
		h.handleRegisterPhone(ctx, s, m, chatID, conv, text)
	case stepFindKey:
		h.handleFindKey(ctx, s, m, chatID, text)
	case stepRequestKey:
		h.handleRequestKey(ctx, s, m, chatID, conv, text)
	case stepComment:
		h.handleComment(ctx, s, m, chatID, conv, text)
	}
}

func (h *Handler) handleCommand(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, chatID, text string) {
	switch strings.Fields(text)[0] {
	case "!start":
		if _, err := h.orch.EmployeeByChat(ctx, chatID); err == nil {
			h.reply(s, m, i18n.T("AlreadyRegistered"))
			return
		} else if workflow.Retryable(err) {
			h.reply(s, m, i18n.T("StoreUnavailable"))
			return
		}
		h.convs.get(chatID).step = stepRegisterName
		h.reply(s, m, i18n.T("RegisterAskName"))

	case "!find_key":
		if !h.requireRole(ctx, s, m, chatID, store.RoleUser) {
			return
		}
		h.convs.get(chatID).step = stepFindKey
		h.reply(s, m, i18n.T("AskKeySearch"))

	case "!get_key":
		if !h.requireRole(ctx, s, m, chatID, store.RoleUser) {
			return
		}
		h.convs.get(chatID).step = stepRequestKey
		h.reply(s, m, i18n.T("AskKeyName"))

	case "!not_returned":
		if !h.requireRole(ctx, s, m, chatID, store.RoleSecurity) {
			return
		}
		h.handleNotReturned(ctx, s, m)

	case "!reload":
		if !h.requireRole(ctx, s, m, chatID, store.RoleAdmin) {
			return
		}
		h.admin.InvalidateCache()
		h.reply(s, m, i18n.T("CacheCleared"))

	case "!cache":
		if !h.requireRole(ctx, s, m, chatID, store.RoleAdmin) {
			return
		}
		h.reply(s, m, h.admin.DumpCache())

	default:
		h.reply(s, m, i18n.T("UnknownCommand"))
	}
}

func (h *Handler) handleRegisterPhone(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, chatID string, conv *conversation, text string) {
	if !workflow.ValidPhone(text) {
		h.reply(s, m, i18n.T("RegisterBadPhone"))
		return
	}
	conv.phone = text
	conv.step = stepRegisterConfirm

	summary := i18n.T("RegisterSummary", map[string]any{
		"Name": conv.name, "Surname": conv.surname, "Phone": conv.phone,
	})
	h.replyWithActions(s, m, summary,
		workflow.Action{ID: "regconfirm", Label: i18n.T("RegisterConfirmButton")})
}

func (h *Handler) handleFindKey(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, chatID, text string) {
	h.reply(s, m, i18n.T("KeySearching"))
	out, err := h.orch.FindKey(ctx, text)
	if err != nil {
		h.replyStoreError(s, m, err)
		return
	}
	switch out.Kind {
	case workflow.NotFound:
		h.convs.clear(chatID)
		h.reply(s, m, i18n.T("KeyNotFound"))
	case workflow.Ambiguous:
		h.replyWithActions(s, m, i18n.T("KeyChoose"), candidateActions("find", out.Candidates)...)
	default:
		h.convs.clear(chatID)
		h.reply(s, m, out.Status)
	}
}

func (h *Handler) handleRequestKey(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, chatID string, conv *conversation, text string) {
	h.reply(s, m, i18n.T("KeysSearching"))
	out, err := h.orch.RequestKey(ctx, text)
	if err != nil {
		h.replyStoreError(s, m, err)
		return
	}
	switch out.Kind {
	case workflow.NotFound:
		h.convs.clear(chatID)
		h.reply(s, m, i18n.T("KeyNotFound"))
	case workflow.Ambiguous:
		h.replyWithActions(s, m, i18n.T("KeyChoose"), candidateActions("pick", out.Candidates)...)
	case workflow.AlreadyOut:
		h.convs.clear(chatID)
		h.reply(s, m, i18n.T("KeyAlreadyTaken")+"\n\n"+workflow.FormatStatus(*out.Holder))
	case workflow.AlreadyRequested:
		h.convs.clear(chatID)
		h.reply(s, m, i18n.T("KeyAlreadyRequested"))
	case workflow.Found:
		conv.key = out.Key
		conv.step = stepComment
		h.reply(s, m, i18n.T("KeyAskComment", map[string]any{"Key": out.Key}))
	}
}

func (h *Handler) handleComment(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, chatID string, conv *conversation, text string) {
	key := conv.key
	h.convs.clear(chatID)

	_, err := h.orch.SubmitComment(ctx, key, chatID, text)
	switch {
	case err == nil:
		h.reply(s, m, i18n.T("RequestSent"))
	case errors.Is(err, workflow.ErrAlreadyPending):
		h.reply(s, m, i18n.T("KeyAlreadyRequested"))
	case errors.Is(err, workflow.ErrNoSecurity):
		h.reply(s, m, i18n.T("NoSecurity"))
	default:
		h.replyStoreError(s, m, err)
	}
}

func (h *Handler) handleNotReturned(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	entries, err := h.orch.NotReturned(ctx)
	if err != nil {
		h.replyStoreError(s, m, err)
		return
	}
	if len(entries) == 0 {
		h.reply(s, m, i18n.T("AllKeysInPlace"))
		return
	}
	for _, e := range entries {
		h.replyWithActions(s, m, workflow.FormatStatus(e),
			workflow.Action{ID: "return:" + e.Key, Label: i18n.T("ReturnButton")})
	}
}

// InteractionCreate handles every button press: approver decisions, key
// returns, suggestion picks and registration confirmation.
func (h *Handler) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	ctx := context.Background()
	chatID := interactionUserID(i)
	action, arg, _ := strings.Cut(i.MessageComponentData().CustomID, ":")

	switch action {
	case "approve":
		h.handleApprove(ctx, s, i, chatID, arg)
	case "deny":
		h.handleDeny(ctx, s, i, chatID, arg)
	case "return":
		h.handleReturn(ctx, s, i, chatID, arg)
	case "pick":
		h.handlePick(ctx, s, i, chatID, arg)
	case "find":
		h.handleFindPick(ctx, s, i, arg)
	case "regconfirm":
		h.handleRegisterConfirm(ctx, s, i, chatID)
	default:
		respond(s, i, i18n.T("UnknownCommand"))
	}
}

func (h *Handler) handleApprove(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, chatID, key string) {
	if !h.requireRoleInteraction(ctx, s, i, chatID, store.RoleSecurity) {
		return
	}
	_, err := h.orch.ApproveRequest(ctx, key)
	switch {
	case errors.Is(err, workflow.ErrExpired):
		respond(s, i, i18n.T("RequestExpiredSecurity"))
		removeButtonsFromMessage(s, i.ChannelID, i.Message.ID)
	case errors.Is(err, workflow.ErrAlreadyOut):
		respond(s, i, i18n.T("KeyAlreadyTaken"))
		removeButtonsFromMessage(s, i.ChannelID, i.Message.ID)
	case workflow.Retryable(err):
		// Leave the buttons so the approver can try again once the store is
		// back; the tracker has already resolved, so the retry goes through
		// the expired path and they will see the request gone.
		respond(s, i, i18n.T("StoreUnavailable"))
	case err != nil:
		log.Printf("Error approving request for %s: %v", key, err)
		respond(s, i, i18n.T("StoreUnavailable"))
	default:
		respond(s, i, i18n.T("RequestApprovedSecurity"))
		removeButtonsFromMessage(s, i.ChannelID, i.Message.ID)
	}
}

func (h *Handler) handleDeny(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, chatID, key string) {
	if !h.requireRoleInteraction(ctx, s, i, chatID, store.RoleSecurity) {
		return
	}
	err := h.orch.DenyRequest(ctx, key)
	if errors.Is(err, workflow.ErrExpired) {
		respond(s, i, i18n.T("RequestExpiredSecurity"))
	} else {
		respond(s, i, i18n.T("RequestDeniedSecurity"))
	}
	removeButtonsFromMessage(s, i.ChannelID, i.Message.ID)
}

func (h *Handler) handleReturn(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, chatID, key string) {
	if !h.requireRoleInteraction(ctx, s, i, chatID, store.RoleSecurity) {
		return
	}
	_, err := h.orch.ReturnKey(ctx, key)
	switch {
	case errors.Is(err, workflow.ErrNotOut):
		respond(s, i, i18n.T("ReturnNotOut"))
		removeButtonsFromMessage(s, i.ChannelID, i.Message.ID)
	case err != nil:
		h.respondStoreError(s, i, err)
	default:
		respond(s, i, i18n.T("ReturnRecorded"))
		removeButtonsFromMessage(s, i.ChannelID, i.Message.ID)
	}
}

func (h *Handler) handlePick(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, chatID, key string) {
	out, err := h.orch.CheckKey(ctx, key)
	if err != nil {
		h.respondStoreError(s, i, err)
		return
	}
	removeButtonsFromMessage(s, i.ChannelID, i.Message.ID)
	switch out.Kind {
	case workflow.AlreadyOut:
		h.convs.clear(chatID)
		respond(s, i, i18n.T("KeyAlreadyTaken")+"\n\n"+workflow.FormatStatus(*out.Holder))
	case workflow.AlreadyRequested:
		h.convs.clear(chatID)
		respond(s, i, i18n.T("KeyAlreadyRequested"))
	default:
		conv := h.convs.get(chatID)
		conv.key = key
		conv.step = stepComment
		respond(s, i, i18n.T("KeyAskComment", map[string]any{"Key": key}))
	}
}

func (h *Handler) handleFindPick(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, key string) {
	status, err := h.orch.KeyStatus(ctx, key)
	if err != nil {
		h.respondStoreError(s, i, err)
		return
	}
	removeButtonsFromMessage(s, i.ChannelID, i.Message.ID)
	respond(s, i, status)
}

func (h *Handler) handleRegisterConfirm(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, chatID string) {
	conv := h.convs.get(chatID)
	if conv.step != stepRegisterConfirm {
		respond(s, i, i18n.T("RegisterError"))
		return
	}
	err := h.orch.RegisterEmployee(ctx, store.Employee{
		FirstName: conv.name,
		LastName:  conv.surname,
		Phone:     conv.phone,
		ChatID:    chatID,
	})
	if err != nil {
		log.Printf("Error registering employee for chat %s: %v", chatID, err)
		respond(s, i, i18n.T("RegisterError"))
		return
	}
	h.convs.clear(chatID)
	removeButtonsFromMessage(s, i.ChannelID, i.Message.ID)
	respond(s, i, i18n.T("RegisterSaved"))
}

func (h *Handler) requireRole(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, chatID string, role store.Role) bool {
	ok, err := h.orch.HasRole(ctx, chatID, role)
	if err != nil {
		h.replyStoreError(s, m, err)
		return false
	}
	if !ok {
		h.reply(s, m, i18n.T("NoAccess"))
	}
	return ok
}

func (h *Handler) requireRoleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, chatID string, role store.Role) bool {
	ok, err := h.orch.HasRole(ctx, chatID, role)
	if err != nil {
		h.respondStoreError(s, i, err)
		return false
	}
	if !ok {
		respond(s, i, i18n.T("NoAccess"))
	}
	return ok
}

func (h *Handler) reply(s *discordgo.Session, m *discordgo.MessageCreate, text string) {
	if _, err := s.ChannelMessageSend(m.ChannelID, text); err != nil {
		log.Printf("Error sending reply: %v", err)
	}
}

func (h *Handler) replyWithActions(s *discordgo.Session, m *discordgo.MessageCreate, text string, actions ...workflow.Action) {
	_, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:    text,
		Components: actionRows(actions),
	})
	if err != nil {
		log.Printf("Error sending reply with actions: %v", err)
	}
}

func (h *Handler) replyStoreError(s *discordgo.Session, m *discordgo.MessageCreate, err error) {
	log.Printf("Record store error: %v", err)
	h.reply(s, m, i18n.T("StoreUnavailable"))
}

func (h *Handler) respondStoreError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	log.Printf("Record store error: %v", err)
	respond(s, i, i18n.T("StoreUnavailable"))
}

func candidateActions(prefix string, candidates []string) []workflow.Action {
	actions := make([]workflow.Action, len(candidates))
	for i, c := range candidates {
		actions[i] = workflow.Action{ID: prefix + ":" + c, Label: c}
	}
	return actions
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func removeButtonsFromMessage(s *discordgo.Session, channelID, messageID string) {
	emptyComponents := []discordgo.MessageComponent{}

	_, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Components: &emptyComponents,
	})
	if err != nil {
		log.Printf("Error removing buttons: %v", err)
	}
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}
