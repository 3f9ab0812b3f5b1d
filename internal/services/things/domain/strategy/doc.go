// Package strategy maps commands onto their outcome.
//
// A strategy answers one command type: given the current state of the
// addressed entity it decides whether it applies (IsDefined) and produces a
// Result. Results form a closed union: a Mutation carrying the event to
// persist and the response, a Query carrying only a response, an Error, or
// the Unhandled and Empty markers of the dispatcher.
//
// Strategies never modify the current state. Work that suspends, such as
// structural validation, is expressed as an async.Task so the per-entity
// caller can await it without holding locks.
package strategy
