package slack

import (
	"encoding/json"
	"regexp"
	"strings"

	"crypto_bot/internal/bot"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// mentionBlocks is the rich text of an app_mention, decoded from the raw
// envelope payload.
type mentionBlocks struct {
	Event struct {
		Blocks []richBlock `json:"blocks"`
	} `json:"event"`
}

type richBlock struct {
	Type     string `json:"type"`
	Elements []struct {
		Type     string `json:"type"`
		Elements []struct {
			Type   string `json:"type"`
			Text   string `json:"text"`
			UserID string `json:"user_id"`
		} `json:"elements"`
	} `json:"elements"`
}

var mentionToken = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

// MentionText extracts the ticker text that follows the bot mention. The rich
// text blocks are preferred; the plain text with mention tokens stripped
// covers clients that send none.
func MentionText(blocks []richBlock, text string) string {
	if len(blocks) > 0 && len(blocks[0].Elements) > 0 {
		section := blocks[0].Elements[0].Elements
		for i, el := range section {
			if el.Type == "user" && i+1 < len(section) && section[i+1].Type == "text" {
				return section[i+1].Text
			}
		}
		if len(section) > 0 {
			return ""
		}
	}
	return mentionToken.ReplaceAllString(text, "")
}

// mentionEvent maps an app_mention to the bot's event. raw is the envelope
// payload, read for the blocks.
func mentionEvent(ev *slackevents.AppMentionEvent, raw json.RawMessage) bot.MentionEvent {
	var mb mentionBlocks
	if len(raw) > 0 {
		json.Unmarshal(raw, &mb)
	}
	return bot.MentionEvent{
		Thread: bot.ThreadRef{Channel: ev.Channel, ThreadTS: ev.ThreadTimeStamp},
		User:   ev.User,
		Text:   MentionText(mb.Event.Blocks, ev.Text),
	}
}

// selectionEvent maps one action of a block_actions callback. The chosen value
// comes from the menu's state for the Go button and from the action itself for
// the select.
func selectionEvent(envelopeID string, cb slackgo.InteractionCallback, a *slackgo.BlockAction) bot.SelectionEvent {
	channel := cb.Channel.ID
	if channel == "" {
		channel = cb.Container.ChannelID
	}
	ev := bot.SelectionEvent{
		EnvelopeID:       envelopeID,
		Thread:           bot.ThreadRef{Channel: channel, ThreadTS: cb.Message.ThreadTimestamp},
		User:             cb.User.ID,
		CorrelationToken: strings.TrimSpace(cb.Message.Text),
	}
	switch a.ActionID {
	case GoActionID:
		if cb.BlockActionState != nil {
			if st, ok := cb.BlockActionState.Values[MenuBlockID][SelectActionID]; ok {
				ev.ChosenValue = st.SelectedOption.Value
			}
		}
	case SelectActionID:
		ev.ChosenValue = a.SelectedOption.Value
	}
	return ev
}
