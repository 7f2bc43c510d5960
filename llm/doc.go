// Copyright (c) Companion Authors.
// Licensed under the MIT License.

/*
Package llm defines the AI generation collaborator consumed by the flow
orchestrator.

# Overview

A user turn goes through three model calls:

  - [Service.SelectAgentAndPrompts]: the router instruction picks the agent
    and derives the few-shot and knowledge retrieval prompts.
  - [Service.GenerateResponse]: the agent instruction, retrieved context,
    profile and history produce the reply, streamed chunk by chunk.
  - [Service.GenerateProfile]: the memory instruction rewrites the profile
    after every turn.

Implementations classify failures with the connection, protocol and
processing codes of the types package.

# Implementations

Package llm/openai talks to any OpenAI-compatible chat completions endpoint.
Package llm/tokenizer trims history to the model's token budget.
*/
package llm
