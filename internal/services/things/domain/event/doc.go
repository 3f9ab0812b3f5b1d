// Package event defines the thing events emitted by accepted commands and the
// deterministic function that applies them during replay.
//
// An event carries the resource path it touched together with the value
// written there and the metadata subtree at that path afterwards, so the new
// thing can be rebuilt from the previous one without re-running the strategy
// that produced it.
package event
