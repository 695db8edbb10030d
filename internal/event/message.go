package event

import (
	"encoding/json"
	"time"
)

// MessageKind classifies timeline events for list previews.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindText
	KindEmote
	KindNotice
	KindImage
	KindFile
	KindAudio
	KindVideo
	KindSticker
	KindEncrypted
)

type messageContent struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

// Kind returns the preview kind of a timeline event.
func Kind(e Event) MessageKind {
	switch e.Type {
	case TypeSticker:
		return KindSticker
	case TypeRoomEncrypted:
		return KindEncrypted
	case TypeRoomMessage:
	default:
		return KindUnknown
	}

	var c messageContent
	if err := json.Unmarshal(e.Content, &c); err != nil {
		return KindUnknown
	}
	switch c.MsgType {
	case "m.text":
		return KindText
	case "m.emote":
		return KindEmote
	case "m.notice":
		return KindNotice
	case "m.image":
		return KindImage
	case "m.file":
		return KindFile
	case "m.audio":
		return KindAudio
	case "m.video":
		return KindVideo
	}
	return KindUnknown
}

// Body returns the body of an m.room.message or m.sticker event.
func Body(e Event) string {
	var c messageContent
	if err := json.Unmarshal(e.Content, &c); err != nil {
		return ""
	}
	return c.Body
}

var kindDescriptions = map[MessageKind]string{
	KindImage:     "sent an image",
	KindFile:      "sent a file",
	KindAudio:     "sent an audio clip",
	KindVideo:     "sent a video clip",
	KindSticker:   "sent a sticker",
	KindEncrypted: "sent an encrypted message",
}

// DescInfo summarises the last message of a room.
type DescInfo struct {
	Username  string    `json:"username"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	Timestamp string    `json:"timestamp"`
	Datetime  time.Time `json:"datetime"`
}

// Describe builds the preview of a timeline event. senderName is the
// sender's display name in the room; the local user is shown as "You".
// Unknown kinds yield a zero DescInfo.
func Describe(e Event, localUser, senderName string, now time.Time) DescInfo {
	kind := Kind(e)
	if kind == KindUnknown {
		return DescInfo{}
	}

	ts := time.UnixMilli(e.OriginServerTS).In(now.Location())

	info := DescInfo{
		Username:  senderName,
		UserID:    e.Sender,
		Timestamp: DescriptiveTime(ts, now),
		Datetime:  ts,
	}
	if e.Sender == localUser {
		info.Username = "You"
	}

	switch kind {
	case KindText, KindNotice:
		info.Body = ": " + Body(e)
	case KindEmote:
		info.Username = ""
		info.Body = "* " + senderName + " " + Body(e)
	default:
		info.Body = " " + kindDescriptions[kind]
	}
	return info
}

// DescriptiveTime renders then relative to now: the time of day for today,
// "Yesterday", a day/month date within a year, or a full short date.
func DescriptiveTime(then, now time.Time) string {
	days := daysBetween(then, now)

	switch {
	case days == 0:
		return then.Format("15:04")
	case days < 2:
		return "Yesterday"
	case days < 365:
		return then.Format("02/01")
	}
	return then.Format("02/01/06")
}

// daysBetween counts calendar days from then to now in now's location.
func daysBetween(then, now time.Time) int {
	y1, m1, d1 := then.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
