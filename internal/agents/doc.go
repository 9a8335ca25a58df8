// ABOUTME: Package documentation for the responder layer.
// ABOUTME: Describes the dispatch flow and the responder hierarchy.

// Package agents implements the responder hierarchy: a primary chat
// responder that handles simple queries and escalates the rest, a
// supervisor that plans and coordinates specialized responders, and the
// specialists themselves (weather, web search, metrics, thread operations).
//
// Dispatch enters through the Orchestrator: every message goes to the
// primary responder first; when the classifier decides the request needs
// specialized capabilities, the supervisor takes over, plans which
// specialists to consult, invokes them in order, and synthesizes their
// results into one reply.
package agents
