package model

import (
	"fmt"
	"time"
)

// ClientState is the coarse-grained connection state reported by the
// external messaging client.
type ClientState string

const (
	StateInitializing  ClientState = "initializing"
	StateLoading       ClientState = "loading"
	StateAuthenticated ClientState = "authenticated"
	StateReady         ClientState = "ready"
	StateDisconnected  ClientState = "disconnected"
	StateError         ClientState = "error"
)

// StateChange is the payload of a connection-state event.
type StateChange struct {
	Stage   ClientState `json:"stage"`
	Reason  string      `json:"reason,omitempty"`
	Percent int         `json:"percent,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Media describes a stored media attachment on a message.
type Media struct {
	URL      string `json:"mediaUrl" bson:"mediaUrl"`
	Mimetype string `json:"mimetype" bson:"mimetype"`
	Filename string `json:"filename,omitempty" bson:"filename,omitempty"`
	Size     int64  `json:"size" bson:"size"`
}

// Message is the durable unit persisted per logical chat message.
// ID is stable per message; re-processing the same ID must result in an
// idempotent upsert, never a duplicate row.
type Message struct {
	ID         string `json:"id" bson:"_id"`
	Direction  string `json:"direction" bson:"direction"` // "in" or "out"
	ChatID     string `json:"chatId" bson:"chatId"`
	ChatName   string `json:"chatName,omitempty" bson:"chatName,omitempty"`
	IsGroup    bool   `json:"isGroup" bson:"isGroup"`
	From       string `json:"from" bson:"from"`
	To         string `json:"to" bson:"to"`
	Author     string `json:"author,omitempty" bson:"author,omitempty"`
	AuthorName string `json:"authorName,omitempty" bson:"authorName,omitempty"`
	FromMe     bool   `json:"fromMe" bson:"fromMe"`
	Body       string `json:"body" bson:"body"`
	Type       string `json:"type" bson:"type"` // chat, image, video, audio, ptt, sticker, document
	Ack        int    `json:"ack,omitempty" bson:"ack,omitempty"`
	PeerJID    string `json:"peerJid,omitempty" bson:"peerJid,omitempty"`

	// Timestamp is the origin timestamp in Unix milliseconds. External
	// clients may report seconds precision; use NormalizeMillis.
	Timestamp int64 `json:"ts" bson:"ts"`

	Media *Media `json:"media,omitempty" bson:"media,omitempty"`

	// Preview is a small inline data-URL thumbnail for image messages,
	// produced by the client runner alongside the full attachment.
	Preview string `json:"preview,omitempty" bson:"preview,omitempty"`

	// CreatedAt is assigned locally on ingestion and drives TTL expiry.
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Key returns the stable identity used for idempotent upserts: the
// client-assigned message id, or a chat+timestamp composite when absent.
func (m *Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return fmt.Sprintf("%s:%d", m.ChatID, m.Timestamp)
}

// Ack is the payload of a delivery-acknowledgement event.
type Ack struct {
	MessageID string `json:"id"`
	Level     int    `json:"ack"`
}

// ChatSummary is a per-chat rollup derived from stored messages,
// ordered by most recent activity.
type ChatSummary struct {
	ChatID   string `json:"chatId" bson:"_id"`
	LastTs   int64  `json:"lastTs" bson:"lastTs"`
	LastBody string `json:"lastBody" bson:"lastBody"`
	ChatName string `json:"chatName,omitempty" bson:"chatName,omitempty"`
	IsGroup  bool   `json:"isGroup" bson:"isGroup"`
}

// NormalizeMillis converts a seconds-precision Unix timestamp to
// milliseconds. Values already in milliseconds (>= 1e12) pass through.
func NormalizeMillis(ts int64) int64 {
	if ts > 0 && ts < 1e12 {
		return ts * 1000
	}
	return ts
}
