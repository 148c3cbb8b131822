package worker

import (
	"encoding/json"
	"strings"

	"github.com/Dev-Codn/notificationfeb/internal/notify"
	"github.com/Dev-Codn/notificationfeb/internal/platform"
)

// Defaults applied when a push payload omits display fields.
const (
	defaultTitle = "New Notification"
	defaultIcon  = "/icons/icon-192.png"
	defaultBadge = "/icons/badge-72.png"
)

var defaultVibrate = []int{200, 100, 200}

// ParsePushPayload decodes a push payload, falling back to plain text when
// JSON parsing fails: the raw bytes become the body under a generic title.
func ParsePushPayload(data []byte) notify.PushPayload {
	var payload notify.PushPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Title == "" && payload.Body == "" {
		return notify.PushPayload{
			Title: defaultTitle,
			Body:  strings.TrimSpace(string(data)),
		}
	}
	if payload.Title == "" {
		payload.Title = defaultTitle
	}
	return payload
}

// displayOptions derives platform rendering options from a payload, filling
// the documented defaults for absent fields.
func displayOptions(payload notify.PushPayload) platform.DisplayOptions {
	opts := platform.DisplayOptions{
		Body:               payload.Body,
		Icon:               payload.Icon,
		Badge:              payload.Badge,
		Tag:                payload.Tag,
		RequireInteraction: payload.RequireInteraction,
		Vibrate:            payload.Vibrate,
		Data:               payload.Data,
		Actions:            payload.Actions,
	}
	if opts.Icon == "" {
		opts.Icon = defaultIcon
	}
	if opts.Badge == "" {
		opts.Badge = defaultBadge
	}
	if len(opts.Vibrate) == 0 {
		opts.Vibrate = defaultVibrate
	}
	return opts
}
