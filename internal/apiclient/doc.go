// Package apiclient is the single path from branchdesk to the admin backend.
//
// Every call goes through Client.Do, which gates on connectivity, attaches the
// stored bearer token, retries transient failures with exponential backoff,
// caches successful reads, and turns any failure into a ClassifiedError.
// Failures are always logged; only those passing the visibility policy reach
// staff, through exactly one of the registered error handler or a toast.
package apiclient
