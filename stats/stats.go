// Package stats maintains a single live message in the status channel
// listing the keys currently out. The store pokes NotifyUpdate after every
// custody mutation.
package stats

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"keywarden/i18n"
	"keywarden/store"
	"keywarden/workflow"

	"github.com/bwmarrin/discordgo"
)

type Board struct {
	session    *discordgo.Session
	st         store.Store
	channelID  string
	messageID  string
	mutex      sync.Mutex
	lastUpdate time.Time
}

func NewBoard(s *discordgo.Session, st store.Store, channelID string) *Board {
	return &Board{
		session:   s,
		st:        st,
		channelID: channelID,
	}
}

// SetStore attaches the store after construction. The board is created
// before the store because the store wants NotifyUpdate as its onChange
// callback.
func (b *Board) SetStore(st store.Store) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.st = st
}

// NotifyUpdate refreshes the board. Safe to call from any goroutine; the
// refresh itself runs detached so store mutations never wait on Discord.
func (b *Board) NotifyUpdate() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.channelID == "" || b.st == nil {
		return
	}
	b.lastUpdate = time.Now()

	go b.update()
}

func (b *Board) update() {
	open, err := b.st.ListOpenCustodyEntries(context.Background())
	if err != nil {
		log.Printf("Error getting open entries for status board: %v", err)
		return
	}

	content := formatBoard(open)

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.messageID == "" {
		if messageID, err := b.findLastBoardMessage(); err == nil && messageID != "" {
			b.messageID = messageID
		}
	}

	if b.messageID != "" {
		_, err := b.session.ChannelMessageEdit(b.channelID, b.messageID, content)
		if err != nil {
			log.Printf("Error updating status board: %v", err)
			b.messageID = ""
		}
	}

	if b.messageID == "" {
		msg, err := b.session.ChannelMessageSend(b.channelID, content)
		if err != nil {
			log.Printf("Error sending status board: %v", err)
			return
		}
		b.messageID = msg.ID
	}
}

func formatBoard(open []store.CustodyEntry) string {
	if len(open) == 0 {
		return "**" + i18n.T("BoardTitle") + "**\n" + i18n.T("BoardEmpty")
	}

	var sb strings.Builder
	sb.WriteString("**" + i18n.T("BoardTitle") + "**\n```\n")
	for _, e := range open {
		fmt.Fprintf(&sb, "%s - %s, %s\n",
			e.Key, e.HolderName(), e.ReceivedAt.Format(workflow.StampFormat))
	}
	sb.WriteString("```")
	return sb.String()
}

func (b *Board) findLastBoardMessage() (string, error) {
	messages, err := b.session.ChannelMessages(b.channelID, 10, "", "", "")
	if err != nil {
		return "", err
	}

	for _, msg := range messages {
		if msg.Author.ID == b.session.State.User.ID && strings.Contains(msg.Content, i18n.T("BoardTitle")) {
			return msg.ID, nil
		}
	}

	return "", nil
}

// Cleanup deletes the board message on shutdown.
func (b *Board) Cleanup() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.messageID != "" {
		err := b.session.ChannelMessageDelete(b.channelID, b.messageID)
		if err != nil {
			log.Printf("Error deleting status board message: %v", err)
		}
	}
}
