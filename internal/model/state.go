// Package model defines the synchronized application state types.
package model

import (
	"encoding/json"
	"time"
)

// StoreKey identifies one logical store of the application state.
type StoreKey string

const (
	StoreChat   StoreKey = "chat-next-web-store"
	StoreAccess StoreKey = "access-control"
	StoreConfig StoreKey = "app-config"
	StoreMask   StoreKey = "mask-store"
	StorePrompt StoreKey = "prompt-store"
)

// StoreKeys lists every logical store in a fixed order.
var StoreKeys = []StoreKey{StoreChat, StoreAccess, StoreConfig, StoreMask, StorePrompt}

// ValidStoreKeys are the allowed store identifiers.
var ValidStoreKeys = map[StoreKey]bool{
	StoreChat:   true,
	StoreAccess: true,
	StoreConfig: true,
	StoreMask:   true,
	StorePrompt: true,
}

// AppState is a snapshot of all five logical stores.
type AppState struct {
	Chat   ChatState   `json:"chat-next-web-store"`
	Access Record      `json:"access-control"`
	Config Record      `json:"app-config"`
	Mask   MaskState   `json:"mask-store"`
	Prompt PromptState `json:"prompt-store"`
}

// Normalize replaces nil collections with empty ones so that encoded
// snapshots never carry null where a list or mapping is expected.
func (s *AppState) Normalize() {
	if s.Chat.Sessions == nil {
		s.Chat.Sessions = []Session{}
	}
	for i := range s.Chat.Sessions {
		if s.Chat.Sessions[i].Messages == nil {
			s.Chat.Sessions[i].Messages = []Message{}
		}
	}
	if s.Access == nil {
		s.Access = Record{}
	}
	if s.Config == nil {
		s.Config = Record{}
	}
	if s.Mask.Masks == nil {
		s.Mask.Masks = map[string]Record{}
	}
	if s.Prompt.Prompts == nil {
		s.Prompt.Prompts = map[string]Record{}
	}
}

// Message is a single chat message. Merge only looks at ID and Date; every
// other field is carried in Extra as written.
type Message struct {
	ID string `json:"id"`
	// Date is kept verbatim. The browser app writes locale strings, so it is
	// only parsed for ordering, see DateTime.
	Date  json.RawMessage `json:"date,omitempty"`
	Extra Record          `json:"-"`
}

// DateTime parses Date. ok is false when the date is missing or in no
// recognized form.
func (m Message) DateTime() (t time.Time, ok bool) {
	return ParseDate(m.Date)
}

// Session is a chat session. A session with no messages never contributes
// to a merge.
type Session struct {
	ID         string    `json:"id"`
	Messages   []Message `json:"messages"`
	LastUpdate int64     `json:"lastUpdate"`
	Extra      Record    `json:"-"`
}

// ChatState is the persisted record of the chat store.
type ChatState struct {
	Sessions []Session `json:"sessions"`
	Extra    Record    `json:"-"`
}

// PromptState is the persisted record of the prompt store. Prompts are
// opaque records keyed by prompt id.
type PromptState struct {
	Prompts map[string]Record `json:"prompts"`
	Extra   Record            `json:"-"`
}

// MaskState is the persisted record of the mask store. Masks are opaque
// records keyed by mask id.
type MaskState struct {
	Masks map[string]Record `json:"masks"`
	Extra Record            `json:"-"`
}

var (
	messageFields     = fieldNames(Message{})
	sessionFields     = fieldNames(Session{})
	chatStateFields   = fieldNames(ChatState{})
	promptStateFields = fieldNames(PromptState{})
	maskStateFields   = fieldNames(MaskState{})
)

func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var p plain
	extra, err := decodeKnown(data, &p, messageFields)
	if err != nil {
		return err
	}
	*m = Message(p)
	m.Extra = extra
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	return encodeKnown(plain(m), m.Extra)
}

func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var p plain
	extra, err := decodeKnown(data, &p, sessionFields)
	if err != nil {
		return err
	}
	*s = Session(p)
	s.Extra = extra
	return nil
}

func (s Session) MarshalJSON() ([]byte, error) {
	type plain Session
	return encodeKnown(plain(s), s.Extra)
}

func (c *ChatState) UnmarshalJSON(data []byte) error {
	type plain ChatState
	var p plain
	extra, err := decodeKnown(data, &p, chatStateFields)
	if err != nil {
		return err
	}
	*c = ChatState(p)
	c.Extra = extra
	return nil
}

func (c ChatState) MarshalJSON() ([]byte, error) {
	type plain ChatState
	return encodeKnown(plain(c), c.Extra)
}

func (p *PromptState) UnmarshalJSON(data []byte) error {
	type plain PromptState
	var v plain
	extra, err := decodeKnown(data, &v, promptStateFields)
	if err != nil {
		return err
	}
	*p = PromptState(v)
	p.Extra = extra
	return nil
}

func (p PromptState) MarshalJSON() ([]byte, error) {
	type plain PromptState
	return encodeKnown(plain(p), p.Extra)
}

func (m *MaskState) UnmarshalJSON(data []byte) error {
	type plain MaskState
	var v plain
	extra, err := decodeKnown(data, &v, maskStateFields)
	if err != nil {
		return err
	}
	*m = MaskState(v)
	m.Extra = extra
	return nil
}

func (m MaskState) MarshalJSON() ([]byte, error) {
	type plain MaskState
	return encodeKnown(plain(m), m.Extra)
}

// SyncState is the sync bookkeeping written after a successful push.
type SyncState struct {
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	LastProvider string     `json:"last_provider"`
}

// HistoryEntry records the outcome of one sync or import cycle.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Provider   string    `json:"provider,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}

// History kinds and outcomes.
const (
	KindSync   = "sync"
	KindImport = "import"

	OutcomeOK        = "ok"
	OutcomeFirstSync = "first_sync"
	OutcomeFailed    = "failed"
)
