// Package openai implements llm.Service against an OpenAI-compatible chat
// completions endpoint. Replies are streamed over SSE; routing and profile
// calls are plain completions.
package openai
