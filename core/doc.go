// Package core defines the lead-capture domain model and the contracts the
// pipeline components depend on.
//
// A lead moves through one durable boundary: once LeadStore.Create returns,
// the submission can no longer be lost. Everything after that boundary is
// captured on the lead itself, never raised back to the submitter.
package core
