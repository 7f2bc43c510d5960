// Copyright (c) Companion Authors.
// Licensed under the MIT License.

/*
Package types holds the shared data model of the companion module.

# Overview

types sits at the bottom of the dependency graph and imports no other
package of this module. catalog, conversation, flow, api, llm, rag and the
storage adapters all exchange values defined here.

# Core types

  - Message          : tagged union of user text, agent reply, scripted
    (predefined) message and activity turn
  - StoredMessage    : flat record used at the storage boundary; Encode and
    Decode convert between the two shapes
  - Metadata         : activity payload with a canonical JSON serialization
  - Button           : link from one predefined entry to another
  - PredefinedEntry  : scripted message as listed by the backend
  - InstructionEntry : agent or pipeline instruction text
  - Conversation, Profile: remote lifecycle records
  - Error / ErrorCode: structured errors; transport failures are classified as
    CONNECTION_ERROR, PROTOCOL_ERROR or PROCESSING_ERROR
*/
package types
