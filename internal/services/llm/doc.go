// Package llm is a small client for OpenAI-compatible chat completion
// endpoints (Ollama, llama.cpp server, OpenRouter and similar).
//
// Client.Complete sends one system/user exchange and returns the reply text.
// Requests are paced by an optional token-bucket limiter and retried on
// HTTP 408/429/5xx, network timeouts and empty completions with exponential
// backoff. Failures carry services markers so callers can classify them:
// unreachable endpoints are ErrExternalTool, undecodable or empty replies are
// ErrMalformedOutput and HTTP 507 is ErrResourceExhausted.
package llm
