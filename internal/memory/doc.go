// Package memory keeps the turn log of one conversation together with a
// running summary that bounds how much history is sent upstream.
//
// Model:
//   - The turn log is append-only until Reset.
//   - A cursor marks how many leading turns are folded into the summary;
//     only turns past it are sent verbatim.
//   - The summary changes only by Apply (compaction) or Reset.
//
// SummaryMemory is not safe for concurrent use; its owner serializes access.
package memory
