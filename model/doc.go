// Package model defines the provider-agnostic abstractions for talking to
// language models inside agentcrew.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, core.FunctionCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (model/openai, model/anthropic, model/gemini) implement Model so
// agents and flows stay decoupled from vendor SDKs. model/provider builds one
// from a provider name.
package model
