// Package jobs persists subtitle generation jobs in SQLite.
//
// Each upload becomes a job keyed by a UUID. Completed jobs record the output
// subtitle path together with the content hash and settings that produced
// it, so a later upload of identical content can be answered from the store.
// Schema changes ship as embedded migrations applied on Open.
package jobs
