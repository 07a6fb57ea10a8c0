// Package llm provides JSON-only completion clients for the inference
// providers bluestar supports.
//
// # Providers
//
//   - openai / openrouter: OpenAI-compatible chat completions with
//     response_format=json_object.
//   - claude: Anthropic messages API; JSON is requested in the system prompt.
//   - gemini: the genai SDK with ResponseMIMEType application/json.
//
// # Entry Points
//
// New: construct the Completer for a provider from Config.
// Completer.CompleteJSON: send system/user prompts, receive the raw JSON text.
// DecodeLLMJSON: decode a reply, stripping code fences and surrounding prose.
// HealthCheck: verify key and model availability.
//
// # Retry Behaviour
//
// Every provider retries HTTP 408/429/5xx, network timeouts, and empty
// completions with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default) through the shared retry package. Context cancellation aborts
// retries immediately.
//
// # Errors
//
// Failures that escape the retry loop carry a services marker: 401/403 map to
// ErrAuth, 429 to ErrRateLimited, 5xx to ErrTransient, timeouts to ErrTimeout,
// and repeated empty completions to ErrValidation.
package llm
