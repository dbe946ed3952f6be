// Package search provides web search tools backed by Serper (Google results)
// and Tavily. Both speak plain JSON over HTTPS; Provider lets tests and
// callers plug in other backends.
package search
