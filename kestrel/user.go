package kestrel

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

var (
	columnUserUsername     = "username"
	columnUserXP           = "xp"
	columnUserLevel        = "level"
	columnUserMessageCount = "message_count"
	columnUserID           = "user_id"
)

// User is a record of a Discord user and their progression state.
// See: https://discord.com/developers/docs/resources/user
//
//nolint:lll // struct tags can't be split
type User struct {
	// ID is the Discord user ID
	ID string `json:"id" gorm:"primaryKey;unique;type:string"`

	// Username, not unique. Last-observed value; informational only.
	Username string `json:"username" gorm:"type:string"`

	// Indicates this user is a Discord bot user. Bot authors never
	// earn progression and their commands are ignored.
	Bot bool `json:"bot" gorm:"type:bool"`

	// XP is the user's accumulated experience. Non-negative, and only
	// ever increases (there is no reset operation).
	XP int `json:"xp" gorm:"column:xp;default:0"`

	// Level is derived from XP but persisted, so that level crossings
	// can be detected against the previously committed value.
	// Invariant: Level == XP/100 + 1 after every transition.
	Level int `json:"level" gorm:"default:1"`

	// MessageCount is incremented once per qualifying message.
	MessageCount int `json:"message_count" gorm:"column:message_count;default:0"`

	ModelUnixTime
}

func NewUser(u discordgo.User) *User {
	return &User{
		ID:       u.ID,
		Username: u.Username,
		Bot:      u.Bot,
		Level:    1,
	}
}

func (u *User) String() string {
	return fmt.Sprintf("%s [%s]", u.Username, u.ID)
}

func (u *User) LogValue() slog.Value {
	if u == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.String(columnUserID, u.ID),
		slog.String("username", u.Username),
		slog.Int("xp", u.XP),
		slog.Int("level", u.Level),
		slog.Int("message_count", u.MessageCount),
	)
}

// userChangedDiscordUsername compares [User.Username] with the given
// discordgo.User, and returns a bool indicating whether the field has
// changed (true) or not (false). This helps avoid 'drift' if the user
// updates their Discord profile.
func (u *User) userChangedDiscordUsername(d discordgo.User) bool {
	return d.Username != u.Username
}
