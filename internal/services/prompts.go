package services

// Prompts sent to the completion model. JSON mode guarantees the response is
// an object; the REQUIRED JSON STRUCTURE blocks pin its shape so the decoded
// result lands in our types without a schema round-trip.

const summarizerSystemPrompt = `You are a conversation summarizer. Analyze the conversation and extract:
1. User profile: preferences and constraints mentioned
2. Key facts: important information discussed
3. Decisions: any decisions made
4. Open questions: unresolved questions
5. Todos: action items mentioned

Be concise and focus on information that would be useful for future context.

Return ONLY valid JSON, no markdown, no code blocks, no explanation.

REQUIRED JSON STRUCTURE:
{
  "user_profile": {"preferences": ["..."], "constraints": ["..."]},
  "key_facts": ["..."],
  "decisions": ["..."],
  "open_questions": ["..."],
  "todos": ["..."]
}`

const summarizeConversationPrompt = "Summarize this conversation:\n\n%s"

const queryUnderstandingSystemPrompt = `You are a query understanding assistant. Analyze the user's query and:

1. Determine if the query is ambiguous (missing context, unclear intent, vague references)
2. If ambiguous, rewrite it to be clearer based on available context
3. Identify which parts of session memory would help answer the query
4. If the query is still unclear after rewriting, generate 1-3 clarifying questions

Be concise. Focus on understanding user intent.

Return ONLY valid JSON, no markdown, no code blocks, no explanation.

REQUIRED JSON STRUCTURE:
{
  "is_ambiguous": true,
  "rewritten_query": "clearer version of the query, or null when not ambiguous",
  "needed_context_from_memory": ["zero or more of: user_profile.preferences, user_profile.constraints, key_facts, decisions, open_questions, todos"],
  "clarifying_questions": ["1-3 questions, or empty when the query is clear"]
}`

const queryAnalysisPrompt = `Analyze this query:

Query: %s

Recent conversation:
%s

%s

Provide your analysis as structured output.`

const answerSystemPrompt = `You are a helpful chat assistant. Use the provided context to answer the user's question.
If the query was rewritten for clarity, use the rewritten version.
Be concise and helpful.`
