// Package conversation holds the in-memory state of the active
// conversation: ids, the rendered profile summary and the message history.
package conversation
