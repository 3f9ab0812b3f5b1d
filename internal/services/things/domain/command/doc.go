// Package command defines the command envelope accepted by the things engine
// and the registry of command definitions.
//
// Every command addresses one thing and one resource path inside it. The
// definition registered for a command type fixes the category (create,
// modify, merge, delete, query, migrate) and the resource kind the path must
// address, so strategies only ever see normalized commands.
package command
