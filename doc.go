// Package propertycrew researches a real-estate address with a crew of LLM
// agents and serves the result over HTTP.
//
// The root package has no API. The pieces live in subpackages:
//
//	crew        sequential multi-agent task runner
//	property    the real-estate crew, its tools and the lookup service
//	server/http gin server exposing GET /api/property
//	llm         provider clients (OpenAI, Anthropic, Gemini) and routing
//	memory      short- and long-term crew memory backends
//	tools       the tool registry, Serper search and website scraping
//
// Binaries are in cmd/property-server and cmd/propertyctl.
package propertycrew
