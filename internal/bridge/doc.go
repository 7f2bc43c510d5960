// Package bridge exposes a flow session over WebSocket.
//
// A client sends JSON frames typed "message", "button", "activity" or
// "reset". The server answers with a "snapshot" frame on connect, then
// relays every emitted flow.Event as a frame whose "type" is the event
// kind. Inputs the session refuses without emitting an error event (busy,
// not ready, malformed) come back as "rejected" frames.
package bridge
