// Copyright (c) Companion Authors.
// Licensed under the MIT License.

/*
Package flow orchestrates a companion conversation.

# Lifecycle

An Orchestrator starts Uninitialized. Initialize runs three phases:

 1. get or create the conversation while the predefined catalog loads
 2. get or create the profile, load the history and the instruction catalog
 3. pick the opening move: bootstrap a new conversation, start the next
    scheduled daily message, or resume

and leaves the orchestrator Ready. A failure in phases 1 or 2 returns it to
Uninitialized; catalog failures are tolerated because the catalogs have
fallbacks.

# Turns

HandleUserMessage, HandleUserActivity, HandleButtonClick and
StartPredefinedMessage each run as one exclusive turn. A second call while
a turn is running fails with TURN_IN_PROGRESS; a call before Ready fails
with NOT_READY. Every turn ends by persisting its last message while the
profile is regenerated. Profile failures are logged and never fail a turn.

# Events

Subscribe registers a Listener on the orchestrator's own Bus. Events are
delivered synchronously in subscription order: message_received,
ai_message_received, ai_message_chunk, error and initialized.
*/
package flow
