package slack

import (
	"encoding/json"
	"strings"
	"testing"

	"crypto_bot/internal/bot"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const mentionPayload = `{
	"event": {
		"type": "app_mention",
		"user": "U123",
		"text": "<@U0BOT> btc",
		"channel": "C42",
		"ts": "1700000000.000200",
		"blocks": [{
			"type": "rich_text",
			"elements": [{
				"type": "rich_text_section",
				"elements": [
					{"type": "user", "user_id": "U0BOT"},
					{"type": "text", "text": " BTC "}
				]
			}]
		}]
	}
}`

const goPayload = `{
	"type": "block_actions",
	"user": {"id": "U123"},
	"channel": {"id": "C42"},
	"message": {"text": "ethereum", "ts": "1700000001.000300", "thread_ts": "1700000000.000200"},
	"state": {"values": {"actions1": {"selection": {"type": "static_select", "selected_option": {"value": "price"}}}}},
	"actions": [{"action_id": "selected_option", "block_id": "actions1", "type": "button", "value": "Go"}]
}`

const selectPayload = `{
	"type": "block_actions",
	"user": {"id": "U123"},
	"channel": {"id": "C42"},
	"message": {"text": "ethereum", "ts": "1700000001.000300"},
	"actions": [{"action_id": "selection", "block_id": "actions1", "type": "static_select", "selected_option": {"value": "news"}}]
}`

func appMention() *slackevents.AppMentionEvent {
	return &slackevents.AppMentionEvent{
		Type:      "app_mention",
		User:      "U123",
		Text:      "<@U0BOT> btc",
		Channel:   "C42",
		TimeStamp: "1700000000.000200",
	}
}

func decodeCallback(t *testing.T, payload string) slackgo.InteractionCallback {
	t.Helper()
	var cb slackgo.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(cb.ActionCallback.BlockActions) == 0 {
		t.Fatalf("No block actions decoded from %s", payload)
	}
	return cb
}

func TestMentionEvent(t *testing.T) {
	ev := mentionEvent(appMention(), json.RawMessage(mentionPayload))
	if ev.Text != " BTC " {
		t.Errorf("Expected text from blocks, got %q", ev.Text)
	}
	if ev.Thread != (bot.ThreadRef{Channel: "C42"}) {
		t.Errorf("Unexpected thread %+v", ev.Thread)
	}
	if ev.User != "U123" {
		t.Errorf("Expected user U123, got %s", ev.User)
	}
}

func TestMentionEvent_InThread(t *testing.T) {
	m := appMention()
	m.ThreadTimeStamp = "1699999999.000100"
	ev := mentionEvent(m, nil)
	if ev.Thread.Key() != "C42:1699999999.000100" {
		t.Errorf("Unexpected thread key %s", ev.Thread.Key())
	}
	if ev.Text != " btc" {
		t.Errorf("Expected stripped text, got %q", ev.Text)
	}
}

func TestMentionText_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "no blocks", text: "<@U0BOT> eth", want: " eth"},
		{name: "labelled mention", text: "<@U0BOT|cryptobot> sol", want: " sol"},
		{name: "bare mention", text: "<@U0BOT>", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MentionText(nil, tt.text); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMentionText_BareMentionInBlocks(t *testing.T) {
	payload := strings.Replace(mentionPayload, `,
					{"type": "text", "text": " BTC "}`, "", 1)
	if ev := mentionEvent(appMention(), json.RawMessage(payload)); ev.Text != "" {
		t.Errorf("Expected empty ticker, got %q", ev.Text)
	}
}

func TestSelectionEvent_GoButton(t *testing.T) {
	cb := decodeCallback(t, goPayload)

	ev := selectionEvent("env-7", cb, cb.ActionCallback.BlockActions[0])
	if ev.ChosenValue != "price" {
		t.Errorf("Expected price, got %q", ev.ChosenValue)
	}
	if ev.CorrelationToken != "ethereum" {
		t.Errorf("Expected token ethereum, got %q", ev.CorrelationToken)
	}
	if ev.Thread.Key() != "C42:1700000000.000200" {
		t.Errorf("Unexpected thread key %s", ev.Thread.Key())
	}
	if ev.EnvelopeID != "env-7" || ev.User != "U123" {
		t.Errorf("Unexpected envelope/user %+v", ev)
	}
}

func TestSelectionEvent_NothingSelected(t *testing.T) {
	payload := strings.Replace(goPayload, `"selection": {"type": "static_select", "selected_option": {"value": "price"}}`,
		`"selection": {"type": "static_select"}`, 1)
	cb := decodeCallback(t, payload)
	if ev := selectionEvent("e", cb, cb.ActionCallback.BlockActions[0]); ev.ChosenValue != "" {
		t.Errorf("Expected empty choice, got %q", ev.ChosenValue)
	}
}

func TestSelectionEvent_MenuChange(t *testing.T) {
	cb := decodeCallback(t, selectPayload)
	ev := selectionEvent("e", cb, cb.ActionCallback.BlockActions[0])
	if ev.ChosenValue != "news" {
		t.Errorf("Expected news, got %q", ev.ChosenValue)
	}
}

func TestMenuBlocks(t *testing.T) {
	b, err := json.Marshal(MenuBlocks(bot.MenuOptions()))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var blocks []map[string]any
	if err := json.Unmarshal(b, &blocks); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(blocks) != 1 || blocks[0]["type"] != "actions" || blocks[0]["block_id"] != "actions1" {
		t.Fatalf("Unexpected blocks %s", b)
	}
	elements := blocks[0]["elements"].([]any)
	sel := elements[0].(map[string]any)
	if sel["type"] != "static_select" || sel["action_id"] != "selection" {
		t.Errorf("Unexpected select %v", sel)
	}
	opts := sel["options"].([]any)
	if len(opts) != 4 {
		t.Fatalf("Expected 4 options, got %d", len(opts))
	}
	first := opts[0].(map[string]any)
	if first["value"] != "description" || first["text"].(map[string]any)["text"] != "Coin Description" {
		t.Errorf("Unexpected first option %v", first)
	}
	button := elements[1].(map[string]any)
	if button["type"] != "button" || button["action_id"] != "selected_option" || button["value"] != "Go" {
		t.Errorf("Unexpected button %v", button)
	}
}
