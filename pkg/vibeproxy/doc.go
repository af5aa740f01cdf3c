// Package vibeproxy is a thin client for a local VibeProxy service, which
// exposes Claude, GPT, Gemini and other models behind one OpenAI-compatible API.
//
// Requests go through the go-openai SDK. The package adds a model-aware
// temperature default, a uniform chunk shape for streaming, error kinds that
// separate connection, timeout and cancellation failures, a registry of
// cancellation handles keyed by request id, and model introspection helpers.
//
//	client := vibeproxy.New(vibeproxy.Config{})
//	res, err := client.Complete(ctx, []vibeproxy.Message{
//		vibeproxy.UserMessage("Hello!"),
//	}, vibeproxy.Options{})
//
// Multi-turn history lives in the conversation package.
package vibeproxy
