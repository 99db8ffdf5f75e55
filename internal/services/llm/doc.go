// Package llm talks to the upstream text-generation provider that turns a
// figure description into LaTeX/TikZ source.
//
// # Providers
//
// Two payload shapes are supported, selected once at startup through
// ProviderFor:
//   - openrouter: OpenAI-style chat completions (system + user messages,
//     choices[0].message.content).
//   - gemini: Google generateContent (systemInstruction + one user content
//     block, candidates[0].content.parts[0].text).
//
// # Entry Points
//
// NewClient: construct a single-attempt client for a Provider.
// Client.Send: issue one POST and return the raw status and body.
// Execute: generic bounded retry driver; Classify decides which outcomes retry.
// Client.Request: Send wrapped in a Policy with tagged terminal errors.
// Extract / Sanitize: locate the generated text and strip markdown fences.
// Client.Probe: GET the provider model listing for diagnostics.
//
// # Retry Behaviour
//
// Only HTTP 429 and transport failures are retried. Waits start at the
// policy's initial wait and grow through a pure Backoff function (additive or
// exponential); the sequence of sleeps never decreases. Exhausted retries
// surface as services.ErrRateLimited or services.ErrNetwork. Every other
// non-2xx status is returned immediately as services.ErrUpstream.
package llm
