// Package workspace manages the ephemeral per-request directories the
// compiler stages run in.
//
// Every stage invocation gets its own uniquely named directory
// (e.g. compilerd-5f0c4730-...) under the configured base, populated with the
// caller's input files, handed to the external tool as its working directory,
// searched for output artifacts, and removed before the request returns.
// Uniqueness comes from the UUID suffix rather than locking, so concurrent
// acquisition is safe by construction.
package workspace
