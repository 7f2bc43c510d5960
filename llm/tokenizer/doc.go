// Package tokenizer counts prompt tokens so conversation history can be
// trimmed to a model's budget. OpenAI-family models use tiktoken; anything
// else, or a tiktoken encoding that cannot be loaded, falls back to a
// character-based estimator.
package tokenizer
