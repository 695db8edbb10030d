package event

import (
	"encoding/json"
	"fmt"
)

// StateContent is the decoded content of a state event. The set of variants
// is closed; types the cache does not project decode to Unknown.
type StateContent interface {
	stateContent()
}

// JoinRule is the value of m.room.join_rules.
type JoinRule string

const (
	JoinRulePublic  JoinRule = "public"
	JoinRuleInvite  JoinRule = "invite"
	JoinRuleKnock   JoinRule = "knock"
	JoinRulePrivate JoinRule = "private"
)

// Membership values of m.room.member.
const (
	MembershipJoin   = "join"
	MembershipInvite = "invite"
	MembershipLeave  = "leave"
	MembershipBan    = "ban"
	MembershipKnock  = "knock"
)

// GuestAccessCanJoin is the guest_access value that admits guests.
const GuestAccessCanJoin = "can_join"

type Name struct {
	Name string `json:"name"`
}

type Topic struct {
	Topic string `json:"topic"`
}

type Avatar struct {
	URL string `json:"url"`
}

type CanonicalAlias struct {
	Alias string `json:"alias"`
}

type JoinRules struct {
	JoinRule JoinRule `json:"join_rule"`
}

type GuestAccess struct {
	GuestAccess string `json:"guest_access"`
}

type Encryption struct {
	Algorithm string `json:"algorithm"`
}

type Member struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// PowerLevels is m.room.power_levels. Optional defaults are pointers so an
// absent field can be told apart from an explicit zero.
type PowerLevels struct {
	Events        map[string]int64 `json:"events,omitempty"`
	EventsDefault *int64           `json:"events_default,omitempty"`
	StateDefault  *int64           `json:"state_default,omitempty"`
	Users         map[string]int64 `json:"users,omitempty"`
	UsersDefault  *int64           `json:"users_default,omitempty"`
}

// Unknown carries any state event type the cache does not interpret.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (Name) stateContent()           {}
func (Topic) stateContent()          {}
func (Avatar) stateContent()         {}
func (CanonicalAlias) stateContent() {}
func (JoinRules) stateContent()      {}
func (GuestAccess) stateContent()    {}
func (Encryption) stateContent()     {}
func (Member) stateContent()         {}
func (PowerLevels) stateContent()    {}
func (Unknown) stateContent()        {}

// Default levels from the Matrix specification.
const (
	DefaultStateLevel int64 = 50
	DefaultUserLevel  int64 = 0
)

// StateLevel returns the level required to send the given state event type.
func (p PowerLevels) StateLevel(eventType string) int64 {
	if level, ok := p.Events[eventType]; ok {
		return level
	}
	if p.StateDefault != nil {
		return *p.StateDefault
	}
	return DefaultStateLevel
}

// UserLevel returns the power level of a user.
func (p PowerLevels) UserLevel(userID string) int64 {
	if level, ok := p.Users[userID]; ok {
		return level
	}
	if p.UsersDefault != nil {
		return *p.UsersDefault
	}
	return DefaultUserLevel
}

// ParseState decodes the content of a state event into its variant.
func ParseState(e Event) (StateContent, error) {
	var (
		content StateContent
		err     error
	)

	switch e.Type {
	case TypeRoomName:
		content, err = decode[Name](e.Content)
	case TypeRoomTopic:
		content, err = decode[Topic](e.Content)
	case TypeRoomAvatar:
		content, err = decode[Avatar](e.Content)
	case TypeRoomCanonicalAlias:
		content, err = decode[CanonicalAlias](e.Content)
	case TypeRoomJoinRules:
		content, err = decode[JoinRules](e.Content)
	case TypeRoomGuestAccess:
		content, err = decode[GuestAccess](e.Content)
	case TypeRoomEncryption:
		content, err = decode[Encryption](e.Content)
	case TypeRoomMember:
		content, err = decode[Member](e.Content)
	case TypeRoomPowerLevels:
		content, err = decode[PowerLevels](e.Content)
	default:
		return Unknown{Type: e.Type, Raw: e.Content}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", e.Type, err)
	}
	return content, nil
}

func decode[T StateContent](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
