// Package rag defines the retrieval collaborator that supplies few-shot
// examples and knowledge snippets for an agent reply, and ships an HTTP
// implementation that queries both stores concurrently.
package rag
