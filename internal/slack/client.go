package slack

import (
	"net/http"
	"strings"
	"time"

	slackgo "github.com/slack-go/slack"
)

// NewClient returns a Web API client. The bot token posts messages; the app
// token lets Socket Mode open its connections.
func NewClient(apiURL, botToken, appToken string, timeout time.Duration) *slackgo.Client {
	return slackgo.New(botToken,
		slackgo.OptionAppLevelToken(appToken),
		slackgo.OptionAPIURL(strings.TrimRight(apiURL, "/")+"/"),
		slackgo.OptionHTTPClient(&http.Client{Timeout: timeout}),
	)
}
