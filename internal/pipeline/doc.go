// Package pipeline runs the scan phases of a target in sequence.
//
// Each phase is a Step that receives the scan report and records what it
// found. The six scan steps wrap external tools through executor.Runner:
// wordlist download, subdomain discovery, HTTP probing, web content
// discovery, the extended scan and nuclei. A failing step never stops the
// following ones; cancellation does, and the remaining phases are recorded
// as skipped.
//
// Scanner adds workspace setup and the JSON report file around a pipeline,
// and BatchProcessor scans several targets concurrently using errgroup.
package pipeline
