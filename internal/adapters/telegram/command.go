package telegram

import (
	"delivery-schedule-bot/internal/services"
	"strings"
)

var commandEvents = map[string]services.EventKind{
	"/start":       services.EventStart,
	"/help":        services.EventStart,
	"/newschedule": services.EventNewSchedule,
	"/endpictures": services.EventEndPictures,
	"/starttrip":   services.EventStartTrip,
	"/nextstop":    services.EventNextStop,
	"/endtrip":     services.EventEndTrip,
}

func splitCommand(text string) (cmd string, rest string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	i := strings.IndexAny(text, " \n\t")
	if i == -1 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// normalizeSlashCommand lowercases a command and strips a "@BotName" suffix.
// Text that is not a command yields "".
func normalizeSlashCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || !strings.HasPrefix(cmd, "/") {
		return ""
	}
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

// toEvent maps a message to an inbound event. Photo events carry the file id
// of the largest size; the image itself is fetched later by the chat worker.
// Unknown commands are answered with help.
func toEvent(msg *message) (ev services.Event, photoFileID string, ok bool) {
	if msg == nil || msg.Chat == nil {
		return services.Event{}, "", false
	}
	ev.ChatID = msg.Chat.ID

	if p, found := largestPhoto(msg.Photo); found {
		ev.Kind = services.EventPhoto
		return ev, p.FileID, true
	}

	cmd, _ := splitCommand(msg.Text)
	if name := normalizeSlashCommand(cmd); name != "" {
		kind, known := commandEvents[name]
		if !known {
			kind = services.EventStart
		}
		ev.Kind = kind
		return ev, "", true
	}

	if msg.Text == "" {
		return services.Event{}, "", false
	}
	ev.Kind = services.EventText
	ev.Text = msg.Text
	return ev, "", true
}
