package models

import "time"

// Message roles. The pipeline only ever produces these two.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn. Immutable once created; ordered by
// insertion within a session.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Equal reports structural equality. Used to deduplicate incoming message
// lists against what the session already holds.
func (m Message) Equal(other Message) bool {
	if m.Role != other.Role || m.Content != other.Content {
		return false
	}
	if (m.Timestamp == nil) != (other.Timestamp == nil) {
		return false
	}
	if m.Timestamp != nil && !m.Timestamp.Equal(*other.Timestamp) {
		return false
	}
	return true
}

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Query     string    `json:"query"`
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages,omitempty"`
}

// ChatResponse is the non-streaming response shell.
type ChatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

// UserProfile holds preferences and constraints extracted from conversation.
type UserProfile struct {
	Preferences []string `json:"preferences"`
	Constraints []string `json:"constraints"`
}

// SessionSummary is the structured distillation of a conversation's older
// content. It is a replaceable snapshot: a new summarization fully overwrites
// the previous one, never merges into it.
type SessionSummary struct {
	UserProfile   UserProfile `json:"user_profile"`
	KeyFacts      []string    `json:"key_facts"`
	Decisions     []string    `json:"decisions"`
	OpenQuestions []string    `json:"open_questions"`
	Todos         []string    `json:"todos"`
}

// MessageRange marks the index range, within the pre-truncation message
// list, that produced the current summary. Informational only.
type MessageRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// SessionMemory is the complete per-session record persisted by the store.
// Messages hold only the unsummarized tail of the conversation; TotalTokens
// is always the token count of exactly that list.
type SessionMemory struct {
	SessionID              string          `json:"session_id"`
	Summary                *SessionSummary `json:"summary,omitempty"`
	MessageRangeSummarized *MessageRange   `json:"message_range_summarized,omitempty"`
	Messages               []Message       `json:"messages"`
	TotalTokens            int             `json:"total_tokens"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// NewSessionMemory returns an empty memory for the given session id.
func NewSessionMemory(sessionID string) *SessionMemory {
	now := time.Now()
	return &SessionMemory{
		SessionID: sessionID,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ContainsMessage reports whether an equal message is already present.
func (m *SessionMemory) ContainsMessage(msg Message) bool {
	for _, existing := range m.Messages {
		if existing.Equal(msg) {
			return true
		}
	}
	return false
}

// QueryUnderstanding is the per-query analysis result. Ephemeral: produced
// fresh for every query and consumed immediately by answer generation.
type QueryUnderstanding struct {
	OriginalQuery           string   `json:"original_query"`
	IsAmbiguous             bool     `json:"is_ambiguous"`
	RewrittenQuery          *string  `json:"rewritten_query,omitempty"`
	NeededContextFromMemory []string `json:"needed_context_from_memory"`
	ClarifyingQuestions     []string `json:"clarifying_questions"`
	FinalAugmentedContext   string   `json:"final_augmented_context"`
}

// EffectiveQuery returns the rewritten query when the query was judged
// ambiguous and a rewrite exists, otherwise the original.
func (q *QueryUnderstanding) EffectiveQuery() string {
	if q.IsAmbiguous && q.RewrittenQuery != nil && *q.RewrittenQuery != "" {
		return *q.RewrittenQuery
	}
	return q.OriginalQuery
}
