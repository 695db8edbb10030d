package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func message(msgtype, body string, ts time.Time) Event {
	content, _ := json.Marshal(map[string]string{"msgtype": msgtype, "body": body})
	return Event{
		Type:           TypeRoomMessage,
		EventID:        "$e",
		Sender:         "@bob:x",
		OriginServerTS: ts.UnixMilli(),
		Content:        content,
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		event Event
		want  MessageKind
	}{
		{message("m.text", "", now), KindText},
		{message("m.emote", "", now), KindEmote},
		{message("m.notice", "", now), KindNotice},
		{message("m.image", "", now), KindImage},
		{message("m.file", "", now), KindFile},
		{message("m.audio", "", now), KindAudio},
		{message("m.video", "", now), KindVideo},
		{message("m.location", "", now), KindUnknown},
		{Event{Type: TypeSticker}, KindSticker},
		{Event{Type: TypeRoomEncrypted}, KindEncrypted},
		{Event{Type: TypeRoomMessage, Content: json.RawMessage(`"oops"`)}, KindUnknown},
		{Event{Type: "m.call.invite"}, KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.event), tt.event.Type+" "+string(tt.event.Content))
	}
}

func TestDescribe(t *testing.T) {
	at := now.Add(-time.Hour)

	tests := []struct {
		name      string
		event     Event
		localUser string
		wantUser  string
		wantBody  string
	}{
		{"text", message("m.text", "hello", at), "@alice:x", "Bob", ": hello"},
		{"notice", message("m.notice", "beep", at), "@alice:x", "Bob", ": beep"},
		{"own text", message("m.text", "hi", at), "@bob:x", "You", ": hi"},
		{"emote", message("m.emote", "waves", at), "@alice:x", "", "* Bob waves"},
		{"image", message("m.image", "a.png", at), "@alice:x", "Bob", " sent an image"},
		{"file", message("m.file", "a.pdf", at), "@alice:x", "Bob", " sent a file"},
		{"audio", message("m.audio", "a.ogg", at), "@alice:x", "Bob", " sent an audio clip"},
		{"video", message("m.video", "a.mp4", at), "@alice:x", "Bob", " sent a video clip"},
		{"sticker", Event{Type: TypeSticker, Sender: "@bob:x", OriginServerTS: at.UnixMilli()}, "@alice:x", "Bob", " sent a sticker"},
		{"encrypted", Event{Type: TypeRoomEncrypted, Sender: "@bob:x", OriginServerTS: at.UnixMilli()}, "@alice:x", "Bob", " sent an encrypted message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Describe(tt.event, tt.localUser, "Bob", now)
			assert.Equal(t, tt.wantUser, info.Username)
			assert.Equal(t, tt.wantBody, info.Body)
			assert.Equal(t, "@bob:x", info.UserID)
			assert.Equal(t, "11:00", info.Timestamp)
			assert.True(t, at.Equal(info.Datetime))
		})
	}
}

func TestDescribe_UnknownKind(t *testing.T) {
	assert.Equal(t, DescInfo{}, Describe(message("m.location", "geo", now), "@a:x", "A", now))
}

func TestDescriptiveTime(t *testing.T) {
	tests := []struct {
		name string
		then time.Time
		want string
	}{
		{"today", time.Date(2024, 3, 15, 0, 5, 0, 0, time.UTC), "00:05"},
		{"yesterday", time.Date(2024, 3, 14, 23, 59, 0, 0, time.UTC), "Yesterday"},
		{"this year", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), "01/03"},
		{"within 365 days", time.Date(2023, 4, 1, 9, 30, 0, 0, time.UTC), "01/04"},
		{"older", time.Date(2022, 12, 25, 9, 30, 0, 0, time.UTC), "25/12/22"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescriptiveTime(tt.then, now))
		})
	}
}
