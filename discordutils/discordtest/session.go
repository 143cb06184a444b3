// Package discordtest provides an in-memory stand-in for the Discord REST API.
package discordtest

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"

	"slippidex/discordutils"
)

// Call is a recorded REST call.
type Call struct {
	Method string
	Args   []string
}

type failure struct {
	method string
	arg    string
	err    error
}

// Session records calls and keeps just enough guild state to answer them.
type Session struct {
	mu     sync.Mutex
	nextID int

	emojis   map[string][]*discordgo.Emoji
	roles    map[string][]*discordgo.Role
	members  map[string]map[string]*discordgo.Member
	channels map[string][]*discordgo.Channel
	messages map[string][]*discordgo.Message

	calls    []Call
	failures []failure
}

var _ discordutils.Session = (*Session)(nil)

// New returns an empty fake session.
func New() *Session {
	return &Session{
		nextID:   1000,
		emojis:   make(map[string][]*discordgo.Emoji),
		roles:    make(map[string][]*discordgo.Role),
		members:  make(map[string]map[string]*discordgo.Member),
		channels: make(map[string][]*discordgo.Channel),
		messages: make(map[string][]*discordgo.Message),
	}
}

// Fail makes every call to method fail with err. When arg is non-empty only
// calls with a matching argument fail.
func (s *Session) Fail(method, arg string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, arg: arg, err: err})
}

// Heal clears every failure injected with Fail.
func (s *Session) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = nil
}

func (s *Session) id() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

// record must be called with s.mu held.
func (s *Session) record(method string, args ...string) error {
	s.calls = append(s.calls, Call{Method: method, Args: args})
	for _, f := range s.failures {
		if f.method != method {
			continue
		}
		if f.arg == "" {
			return f.err
		}
		for _, a := range args {
			if a == f.arg {
				return f.err
			}
		}
	}
	return nil
}

// Calls returns every recorded call to the given methods, or all calls when
// no method is given.
func (s *Session) Calls(methods ...string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(methods) == 0 {
		return append([]Call(nil), s.calls...)
	}
	want := make(map[string]bool, len(methods))
	for _, m := range methods {
		want[m] = true
	}
	var out []Call
	for _, c := range s.calls {
		if want[c.Method] {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded calls.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// AddEmoji seeds a custom emoji.
func (s *Session) AddEmoji(guildID, name string) *discordgo.Emoji {
	s.mu.Lock()
	defer s.mu.Unlock()
	emoji := &discordgo.Emoji{ID: s.id(), Name: name}
	s.emojis[guildID] = append(s.emojis[guildID], emoji)
	return emoji
}

// AddRole seeds a role at the given position.
func (s *Session) AddRole(guildID, name string, position int) *discordgo.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	role := &discordgo.Role{ID: s.id(), Name: name, Position: position}
	s.roles[guildID] = append(s.roles[guildID], role)
	return role
}

// AddMember seeds a guild member holding the given roles.
func (s *Session) AddMember(guildID, userID string, roleIDs ...string) *discordgo.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	member := &discordgo.Member{
		GuildID: guildID,
		User:    &discordgo.User{ID: userID},
		Roles:   append([]string(nil), roleIDs...),
	}
	if s.members[guildID] == nil {
		s.members[guildID] = make(map[string]*discordgo.Member)
	}
	s.members[guildID][userID] = member
	return member
}

// AddChannel seeds a text channel.
func (s *Session) AddChannel(guildID, name string) *discordgo.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	channel := &discordgo.Channel{ID: s.id(), GuildID: guildID, Name: name, Type: discordgo.ChannelTypeGuildText}
	s.channels[guildID] = append(s.channels[guildID], channel)
	return channel
}

// Emojis returns the guild's emojis.
func (s *Session) Emojis(guildID string) []*discordgo.Emoji {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*discordgo.Emoji(nil), s.emojis[guildID]...)
}

// Roles returns the guild's roles.
func (s *Session) Roles(guildID string) []*discordgo.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*discordgo.Role(nil), s.roles[guildID]...)
}

// Member returns a copy of the guild member.
func (s *Session) Member(guildID, userID string) *discordgo.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.members[guildID][userID]
	if !ok {
		return nil
	}
	clone := *member
	clone.Roles = append([]string(nil), member.Roles...)
	return &clone
}

// MemberRoleNames returns the names of the member's roles.
func (s *Session) MemberRoleNames(guildID, userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.members[guildID][userID]
	if !ok {
		return nil
	}
	var names []string
	for _, roleID := range member.Roles {
		for _, role := range s.roles[guildID] {
			if role.ID == roleID {
				names = append(names, role.Name)
			}
		}
	}
	return names
}

// Channels returns the guild's channels.
func (s *Session) Channels(guildID string) []*discordgo.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*discordgo.Channel(nil), s.channels[guildID]...)
}

// Messages returns the messages sent to a channel, oldest first.
func (s *Session) Messages(channelID string) []*discordgo.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*discordgo.Message(nil), s.messages[channelID]...)
}

// Message returns a single message.
func (s *Session) Message(channelID, messageID string) *discordgo.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages[channelID] {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

// GuildEmojis implements discordutils.Session.
func (s *Session) GuildEmojis(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Emoji, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GuildEmojis", guildID); err != nil {
		return nil, err
	}
	return append([]*discordgo.Emoji(nil), s.emojis[guildID]...), nil
}

// GuildEmojiCreate implements discordutils.Session.
func (s *Session) GuildEmojiCreate(guildID string, data *discordgo.EmojiParams, _ ...discordgo.RequestOption) (*discordgo.Emoji, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GuildEmojiCreate", guildID, data.Name); err != nil {
		return nil, err
	}
	emoji := &discordgo.Emoji{ID: s.id(), Name: data.Name}
	s.emojis[guildID] = append(s.emojis[guildID], emoji)
	return emoji, nil
}

// GuildEmojiDelete implements discordutils.Session.
func (s *Session) GuildEmojiDelete(guildID, emojiID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GuildEmojiDelete", guildID, emojiID); err != nil {
		return err
	}
	emojis := s.emojis[guildID]
	for i, e := range emojis {
		if e.ID == emojiID {
			s.emojis[guildID] = append(emojis[:i:i], emojis[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("unknown emoji %v", emojiID)
}

// GuildRoles implements discordutils.Session.
func (s *Session) GuildRoles(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GuildRoles", guildID); err != nil {
		return nil, err
	}
	return append([]*discordgo.Role(nil), s.roles[guildID]...), nil
}

// GuildRoleCreate implements discordutils.Session. New roles land at
// position 1, just above @everyone.
func (s *Session) GuildRoleCreate(guildID string, data *discordgo.RoleParams, _ ...discordgo.RequestOption) (*discordgo.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GuildRoleCreate", guildID, data.Name); err != nil {
		return nil, err
	}
	role := &discordgo.Role{ID: s.id(), Name: data.Name, Position: 1}
	if data.Color != nil {
		role.Color = *data.Color
	}
	if data.Mentionable != nil {
		role.Mentionable = *data.Mentionable
	}
	if data.Permissions != nil {
		role.Permissions = *data.Permissions
	}
	s.roles[guildID] = append(s.roles[guildID], role)
	return role, nil
}

// GuildRoleDelete implements discordutils.Session.
func (s *Session) GuildRoleDelete(guildID, roleID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GuildRoleDelete", guildID, roleID); err != nil {
		return err
	}
	roles := s.roles[guildID]
	for i, r := range roles {
		if r.ID == roleID {
			s.roles[guildID] = append(roles[:i:i], roles[i+1:]...)
			for _, member := range s.members[guildID] {
				member.Roles = without(member.Roles, roleID)
			}
			return nil
		}
	}
	return fmt.Errorf("unknown role %v", roleID)
}

// GuildMember implements discordutils.Session.
func (s *Session) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GuildMember", guildID, userID); err != nil {
		return nil, err
	}
	member, ok := s.members[guildID][userID]
	if !ok {
		return nil, fmt.Errorf("unknown member %v", userID)
	}
	clone := *member
	clone.Roles = append([]string(nil), member.Roles...)
	return &clone, nil
}

// GuildMemberRoleAdd implements discordutils.Session.
func (s *Session) GuildMemberRoleAdd(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GuildMemberRoleAdd", guildID, userID, roleID); err != nil {
		return err
	}
	member, ok := s.members[guildID][userID]
	if !ok {
		return fmt.Errorf("unknown member %v", userID)
	}
	for _, id := range member.Roles {
		if id == roleID {
			return nil
		}
	}
	member.Roles = append(member.Roles, roleID)
	return nil
}

// GuildMemberRoleRemove implements discordutils.Session.
func (s *Session) GuildMemberRoleRemove(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GuildMemberRoleRemove", guildID, userID, roleID); err != nil {
		return err
	}
	member, ok := s.members[guildID][userID]
	if !ok {
		return fmt.Errorf("unknown member %v", userID)
	}
	member.Roles = without(member.Roles, roleID)
	return nil
}

// GuildChannels implements discordutils.Session.
func (s *Session) GuildChannels(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GuildChannels", guildID); err != nil {
		return nil, err
	}
	return append([]*discordgo.Channel(nil), s.channels[guildID]...), nil
}

// GuildChannelCreateComplex implements discordutils.Session.
func (s *Session) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GuildChannelCreateComplex", guildID, data.Name); err != nil {
		return nil, err
	}
	channel := &discordgo.Channel{
		ID:                   s.id(),
		GuildID:              guildID,
		Name:                 data.Name,
		Topic:                data.Topic,
		Type:                 data.Type,
		PermissionOverwrites: data.PermissionOverwrites,
	}
	s.channels[guildID] = append(s.channels[guildID], channel)
	return channel, nil
}

// ChannelPermissionSet implements discordutils.Session.
func (s *Session) ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ChannelPermissionSet", channelID, targetID); err != nil {
		return err
	}
	for _, channels := range s.channels {
		for _, channel := range channels {
			if channel.ID == channelID {
				channel.PermissionOverwrites = append(channel.PermissionOverwrites, &discordgo.PermissionOverwrite{
					ID:    targetID,
					Type:  targetType,
					Allow: allow,
					Deny:  deny,
				})
				return nil
			}
		}
	}
	return fmt.Errorf("unknown channel %v", channelID)
}

// ChannelMessageSend implements discordutils.Session.
func (s *Session) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Content: content})
}

// ChannelMessageSendComplex implements discordutils.Session.
func (s *Session) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ChannelMessageSend", channelID); err != nil {
		return nil, err
	}
	msg := &discordgo.Message{ID: s.id(), ChannelID: channelID, Content: data.Content}
	s.messages[channelID] = append(s.messages[channelID], msg)
	return msg, nil
}

// ChannelMessageEdit implements discordutils.Session.
func (s *Session) ChannelMessageEdit(channelID, messageID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ChannelMessageEdit", channelID, messageID); err != nil {
		return nil, err
	}
	for _, m := range s.messages[channelID] {
		if m.ID == messageID {
			m.Content = content
			return m, nil
		}
	}
	return nil, fmt.Errorf("unknown message %v", messageID)
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
