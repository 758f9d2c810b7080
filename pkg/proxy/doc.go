// Package proxy serves the OpenAI chat completion wire contract over
// HTTP, forwarding requests to a configured client. Pointing an
// existing OpenAI SDK at the proxy's base URL gives it live-search
// augmentation without any code change: the request and response
// bodies keep their wire shape, including SSE streaming chunks.
//
// Endpoints:
//
//	POST /v1/chat/completions
//	GET  /v1/models
//	GET  /healthz
package proxy
