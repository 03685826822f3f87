package kestrel

import "github.com/bwmarrin/discordgo"

const (
	// xpPerMessage is the experience awarded for each qualifying message.
	xpPerMessage = 5

	// xpPerLevel is the amount of experience in one level band.
	xpPerLevel = 100
)

// MessageEvent describes one inbound message as seen by the progression
// engine. It carries only what the transition and its level-up
// announcement need.
type MessageEvent struct {
	UserID    string
	Username  string
	Bot       bool
	ChannelID string
	MessageID string
}

// LevelUp is emitted at most once per transition, when the updated
// record's level exceeds the previously committed one. Level is the
// level reached, regardless of how many thresholds were crossed.
type LevelUp struct {
	UserID    string
	Username  string
	ChannelID string
	Level     int
}

func levelForXP(xp int) int {
	return xp/xpPerLevel + 1
}

// applyMessageEvent is the progression transition. It is a pure
// function: no I/O, fully deterministic given its inputs. The caller is
// responsible for committing the returned record atomically and for
// announcing the level-up only after a successful commit.
//
// A nil record means the user has never been seen: the transition
// constructs a fresh record seeded with one message worth of progress,
// and never reports a level-up (the initial level is not a crossing).
func applyMessageEvent(record *User, ev MessageEvent) (User, *LevelUp) {
	if record == nil {
		next := NewUser(
			discordgo.User{ID: ev.UserID, Username: ev.Username, Bot: ev.Bot},
		)
		next.XP = xpPerMessage
		next.MessageCount = 1
		next.Level = levelForXP(next.XP)
		return *next, nil
	}

	next := *record
	next.XP = record.XP + xpPerMessage
	next.MessageCount = record.MessageCount + 1
	next.Level = levelForXP(next.XP)
	if ev.Username != "" {
		next.Username = ev.Username
	}

	if next.Level > record.Level {
		return next, &LevelUp{
			UserID:    ev.UserID,
			Username:  next.Username,
			ChannelID: ev.ChannelID,
			Level:     next.Level,
		}
	}
	return next, nil
}
