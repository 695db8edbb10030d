package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mxcache/internal/event"
	"github.com/roach88/mxcache/internal/testutil"
)

func TestRoomName_Projection(t *testing.T) {
	tests := []struct {
		name  string
		state func(t *testing.T) []event.Event
		want  string
	}{
		{
			name: "explicit name wins over members",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					testutil.StateEvent(t, event.TypeRoomName, "", event.Name{Name: "Foo"}),
					testutil.Member(t, local, event.MembershipJoin, "Alice"),
					testutil.Member(t, "@bob:example.org", event.MembershipJoin, "Bob"),
					testutil.Member(t, "@carol:example.org", event.MembershipJoin, "Carol"),
				}
			},
			want: "Foo",
		},
		{
			name: "empty name falls through to alias",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					testutil.StateEvent(t, event.TypeRoomName, "", event.Name{}),
					testutil.StateEvent(t, event.TypeRoomCanonicalAlias, "", event.CanonicalAlias{Alias: "#foo:example.org"}),
				}
			},
			want: "#foo:example.org",
		},
		{
			name: "single member is named after themselves",
			state: func(t *testing.T) []event.Event {
				return []event.Event{testutil.Member(t, local, event.MembershipJoin, "Alice")}
			},
			want: "Alice",
		},
		{
			name: "one other member",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					testutil.Member(t, local, event.MembershipJoin, "Me"),
					testutil.Member(t, "@zed:example.org", event.MembershipJoin, "Alice"),
				}
			},
			want: "Alice",
		},
		{
			name: "display name falls back to user id",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					testutil.Member(t, local, event.MembershipJoin, "Me"),
					testutil.Member(t, "@zed:example.org", event.MembershipJoin, ""),
				}
			},
			want: "@zed:example.org",
		},
		{
			name: "group counts every member",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					testutil.Member(t, local, event.MembershipJoin, "Alice"),
					testutil.Member(t, "@bob:example.org", event.MembershipJoin, "Bob"),
					testutil.Member(t, "@carol:example.org", event.MembershipJoin, "Carol"),
				}
			},
			want: "Bob and 3 others",
		},
		{
			name: "group beyond the first three members",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					testutil.Member(t, local, event.MembershipJoin, "Alice"),
					testutil.Member(t, "@dave:example.org", event.MembershipJoin, "Dave"),
					testutil.Member(t, "@bob:example.org", event.MembershipJoin, "Bob"),
					testutil.Member(t, "@carol:example.org", event.MembershipJoin, "Carol"),
				}
			},
			want: "Bob and 4 others",
		},
		{
			name: "invited members count",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					testutil.Member(t, local, event.MembershipJoin, "Alice"),
					testutil.Member(t, "@bob:example.org", event.MembershipInvite, "Bob"),
				}
			},
			want: "Bob",
		},
		{
			name: "no state at all",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					testutil.StateEvent(t, event.TypeRoomTopic, "", event.Topic{Topic: "nothing"}),
				}
			},
			want: EmptyRoomName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := createTestCache(t)
			joinRoom(t, c, "!r:example.org", tt.state(t)...)

			info, ok := c.SingleRoomInfo(context.Background(), "!r:example.org")
			require.True(t, ok)
			assert.Equal(t, tt.want, info.Name)
		})
	}
}

func TestRoomName_LeaveRemovesMember(t *testing.T) {
	c, _ := createTestCache(t)
	ctx := context.Background()

	joinRoom(t, c, "!r:example.org",
		testutil.Member(t, local, event.MembershipJoin, "Alice"),
		testutil.Member(t, "@bob:example.org", event.MembershipJoin, "Bob"),
	)
	assert.True(t, c.IsRoomMember(ctx, "@bob:example.org", "!r:example.org"))

	joinRoom(t, c, "!r:example.org", testutil.Member(t, "@bob:example.org", event.MembershipLeave, ""))

	assert.False(t, c.IsRoomMember(ctx, "@bob:example.org", "!r:example.org"))
	info, ok := c.SingleRoomInfo(ctx, "!r:example.org")
	require.True(t, ok)
	assert.Equal(t, "Alice", info.Name)
	assert.Equal(t, 1, info.MemberCount)

	joinRoom(t, c, "!r:example.org", testutil.Member(t, local, event.MembershipBan, ""))
	info, _ = c.SingleRoomInfo(ctx, "!r:example.org")
	assert.Equal(t, EmptyRoomName, info.Name)
	assert.Equal(t, 0, info.MemberCount)
}

func withAvatar(t *testing.T, userID, name, url string) event.Event {
	return testutil.StateEvent(t, event.TypeRoomMember, userID, event.Member{
		Membership:  event.MembershipJoin,
		DisplayName: name,
		AvatarURL:   url,
	})
}

func TestRoomAvatar_Projection(t *testing.T) {
	tests := []struct {
		name  string
		state func(t *testing.T) []event.Event
		want  string
	}{
		{
			name: "explicit avatar in a group",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					testutil.StateEvent(t, event.TypeRoomAvatar, "", event.Avatar{URL: "mxc://x/room"}),
					withAvatar(t, local, "Alice", "mxc://x/alice"),
					withAvatar(t, "@bob:example.org", "Bob", "mxc://x/bob"),
					withAvatar(t, "@carol:example.org", "Carol", "mxc://x/carol"),
				}
			},
			want: "mxc://x/room",
		},
		{
			name: "groups have no implicit avatar",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					withAvatar(t, local, "Alice", "mxc://x/alice"),
					withAvatar(t, "@bob:example.org", "Bob", "mxc://x/bob"),
					withAvatar(t, "@carol:example.org", "Carol", "mxc://x/carol"),
				}
			},
			want: "",
		},
		{
			name: "direct chat uses the other member",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					withAvatar(t, local, "Alice", "mxc://x/alice"),
					withAvatar(t, "@bob:example.org", "Bob", "mxc://x/bob"),
				}
			},
			want: "mxc://x/bob",
		},
		{
			name: "alone uses the local member",
			state: func(t *testing.T) []event.Event {
				return []event.Event{withAvatar(t, local, "Alice", "mxc://x/alice")}
			},
			want: "mxc://x/alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := createTestCache(t)
			joinRoom(t, c, "!r:example.org", tt.state(t)...)

			info, ok := c.SingleRoomInfo(context.Background(), "!r:example.org")
			require.True(t, ok)
			assert.Equal(t, tt.want, info.AvatarURL)
		})
	}
}

func TestRoomInfo_JoinRuleAndGuestAccess(t *testing.T) {
	c, _ := createTestCache(t)
	ctx := context.Background()

	joinRoom(t, c, "!r:example.org", testutil.Member(t, local, event.MembershipJoin, "Alice"))
	info, _ := c.SingleRoomInfo(ctx, "!r:example.org")
	assert.Equal(t, event.JoinRuleKnock, info.JoinRule)
	assert.False(t, info.GuestAccess)

	joinRoom(t, c, "!r:example.org",
		testutil.StateEvent(t, event.TypeRoomJoinRules, "", event.JoinRules{JoinRule: event.JoinRulePublic}),
		testutil.StateEvent(t, event.TypeRoomGuestAccess, "", event.GuestAccess{GuestAccess: "forbidden"}),
	)
	info, _ = c.SingleRoomInfo(ctx, "!r:example.org")
	assert.Equal(t, event.JoinRulePublic, info.JoinRule)
	assert.False(t, info.GuestAccess)

	joinRoom(t, c, "!r:example.org",
		testutil.StateEvent(t, event.TypeRoomGuestAccess, "", event.GuestAccess{GuestAccess: event.GuestAccessCanJoin}),
	)
	info, _ = c.SingleRoomInfo(ctx, "!r:example.org")
	assert.True(t, info.GuestAccess)
}

func TestInviteProjection(t *testing.T) {
	tests := []struct {
		name       string
		state      func(t *testing.T) []event.Event
		wantName   string
		wantAvatar string
	}{
		{
			name: "name and avatar from state",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					testutil.StateEvent(t, event.TypeRoomName, "", event.Name{Name: "Book club"}),
					testutil.StateEvent(t, event.TypeRoomAvatar, "", event.Avatar{URL: "mxc://x/books"}),
					withAvatar(t, "@erin:example.org", "Erin", "mxc://x/erin"),
				}
			},
			wantName:   "Book club",
			wantAvatar: "mxc://x/books",
		},
		{
			name: "alias is not used for invites",
			state: func(t *testing.T) []event.Event {
				return []event.Event{
					testutil.StateEvent(t, event.TypeRoomCanonicalAlias, "", event.CanonicalAlias{Alias: "#x:example.org"}),
					withAvatar(t, "@erin:example.org", "Erin", "mxc://x/erin"),
					withAvatar(t, "@frank:example.org", "Frank", "mxc://x/frank"),
					testutil.Member(t, local, event.MembershipInvite, ""),
				}
			},
			wantName:   "Erin",
			wantAvatar: "mxc://x/erin",
		},
		{
			name: "only the local user",
			state: func(t *testing.T) []event.Event {
				return []event.Event{testutil.Member(t, local, event.MembershipInvite, "")}
			},
			wantName:   EmptyRoomName,
			wantAvatar: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := createTestCache(t)
			apply(t, c, event.SyncDelta{
				NextBatch: "s",
				Rooms: event.Rooms{Invite: map[string]event.InvitedRoom{
					"!i:example.org": {InviteState: event.StateEvents{Events: tt.state(t)}},
				}},
			})

			info, ok := c.InviteInfo(context.Background(), "!i:example.org")
			require.True(t, ok)
			assert.True(t, info.IsInvite)
			assert.Equal(t, tt.wantName, info.Name)
			assert.Equal(t, tt.wantAvatar, info.AvatarURL)
		})
	}
}

func TestRoomInfos_JoinedAndInvites(t *testing.T) {
	c, _ := createTestCache(t)
	applyFixture(t, c, "initial.yaml")

	infos := c.RoomInfos(context.Background(), []string{"!named:example.org", "!inv:example.org", "!missing:example.org"})

	require.Len(t, infos, 2)
	assert.Equal(t, "Foo", infos["!named:example.org"].Name)
	assert.True(t, infos["!inv:example.org"].IsInvite)
	assert.Equal(t, 2, infos["!inv:example.org"].MemberCount)
}

func TestRemoveRoomAndInvite(t *testing.T) {
	c, _ := createTestCache(t)
	ctx := context.Background()
	applyFixture(t, c, "initial.yaml")

	require.NoError(t, c.RemoveRoom(ctx, "!named:example.org"))
	_, ok := c.SingleRoomInfo(ctx, "!named:example.org")
	assert.False(t, ok)
	assert.Empty(t, c.RoomMembers(ctx, "!named:example.org"))
	events, _ := c.Timeline(ctx, "!named:example.org")
	assert.Empty(t, events)

	require.NoError(t, c.RemoveInvite(ctx, "!inv:example.org"))
	assert.Empty(t, c.Invites(ctx))
}

func TestRoomAvatar_Image(t *testing.T) {
	c, env := createTestCache(t)
	ctx := context.Background()
	applyFixture(t, c, "initial.yaml")

	assert.Nil(t, c.RoomAvatar(ctx, "!dm:example.org"))

	env.SaveImage("mxc://example.org/carol", []byte("carol.png"))
	assert.Equal(t, []byte("carol.png"), c.RoomAvatar(ctx, "!dm:example.org"))
	assert.Nil(t, c.RoomAvatar(ctx, "!group:example.org"))
}
