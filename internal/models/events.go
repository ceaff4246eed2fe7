package models

import "encoding/json"

// Stream event types emitted by the chat pipeline, in the order a consumer
// can expect them. A stream terminates after exactly one EventAnswer.
const (
	EventPipelineStep        = "pipeline_step"
	EventSummary             = "summary"
	EventQueryUnderstanding  = "query_understanding"
	EventClarifyingQuestions = "clarifying_questions"
	EventAnswer              = "answer"
)

// StreamEvent is one tagged progress or result event. Content is a string
// for pipeline_step and answer, a SessionSummary for summary, a
// QueryUnderstanding for query_understanding, and a []string for
// clarifying_questions.
type StreamEvent struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// Encode renders the event as a single JSON line, newline terminated.
// Marshal failures should not happen for the concrete content types above;
// if one does, the event degrades to an empty pipeline step so the stream
// framing stays intact.
func (e StreamEvent) Encode() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		data, _ = json.Marshal(StreamEvent{Type: EventPipelineStep, Content: ""})
	}
	return append(data, '\n')
}

// StepEvent builds a pipeline_step event.
func StepEvent(content string) StreamEvent {
	return StreamEvent{Type: EventPipelineStep, Content: content}
}

// SummaryEvent builds a summary event.
func SummaryEvent(summary *SessionSummary) StreamEvent {
	return StreamEvent{Type: EventSummary, Content: summary}
}

// UnderstandingEvent builds a query_understanding event.
func UnderstandingEvent(result *QueryUnderstanding) StreamEvent {
	return StreamEvent{Type: EventQueryUnderstanding, Content: result}
}

// ClarifyingEvent builds a clarifying_questions event.
func ClarifyingEvent(questions []string) StreamEvent {
	return StreamEvent{Type: EventClarifyingQuestions, Content: questions}
}

// AnswerEvent builds the terminal answer event.
func AnswerEvent(answer string) StreamEvent {
	return StreamEvent{Type: EventAnswer, Content: answer}
}
