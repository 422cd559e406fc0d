// Package notify forwards bot replies to chat services through shoutrrr URLs.
package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/containrrr/shoutrrr"
)

// services that accept a title query parameter
var supportsTitle = map[string]struct{}{
	"bark":       {},
	"discord":    {},
	"gotify":     {},
	"ifttt":      {},
	"join":       {},
	"lark":       {},
	"ntfy":       {},
	"opsgenie":   {},
	"pushbullet": {},
	"pushover":   {},
	"slack":      {},
	"teams":      {},
	"telegram":   {},
	"zulip":      {},
}

// send delivers a message to a shoutrrr URL
var send = shoutrrr.Send

// Notifier sends messages to one shoutrrr service URL.
type Notifier struct {
	url *url.URL
}

// New parses a shoutrrr URL such as "telegram://token@telegram?chats=123".
func New(rawURL string) (*Notifier, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("notification URL is empty")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing URL: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("notification URL %q has no service scheme", rawURL)
	}
	return &Notifier{url: parsed}, nil
}

// Service returns the shoutrrr service name.
func (n *Notifier) Service() string {
	return n.url.Scheme
}

// Send delivers message with title, placing the title where the service
// expects it.
func (n *Notifier) Send(title, message string) error {
	target, body := shape(n.url, title, message)
	if err := send(target, body); err != nil {
		slog.Error("Error sending notification", "service", n.url.Scheme, "err", err)
		return err
	}
	slog.Debug("Sent notification", "service", n.url.Scheme, "title", title)
	return nil
}

// shape returns the URL and message to hand to shoutrrr. The parsed URL is
// not modified.
func shape(u *url.URL, title, message string) (string, string) {
	target := *u
	queryParams := target.Query()

	switch {
	case title == "":
	case hasTitleParam(target.Scheme):
		queryParams.Set("title", title)
	case target.Scheme == "mattermost":
		// markdown heading
		message = "##### " + title + "\n\n" + message
	case target.Scheme == "generic" && queryParams.Has("template"):
		titleKey := queryParams.Get("titlekey")
		if titleKey == "" {
			titleKey = "title"
		}
		queryParams.Set("$"+titleKey, title)
	default:
		message = title + "\n\n" + message
	}

	target.RawQuery = queryParams.Encode()
	return target.String(), message
}

func hasTitleParam(scheme string) bool {
	_, ok := supportsTitle[scheme]
	return ok
}
