// Package deduplication turns the raw findings returned by the analysis
// service into located, deduplicated findings.
//
// # Location resolution
//
// A raw finding carries zero or more locations. Each is either a source map
// locator ("offset:length:fileIndex", optionally with its own source list)
// or a program counter into the deployed bytecode. The first location that
// resolves against the compiled sources becomes the finding's primary
// location; a finding with no resolvable location is kept with a nil one.
//
// # Deduplication
//
// Two findings are duplicates when they share rule id, normalized message
// (trimmed, internal whitespace collapsed) and primary location. The first
// occurrence is kept and the input order is preserved:
//
//	r := deduplication.NewReducer(nil)
//	result := r.Deduplicate(raw, artifact, sources)
//	for dup, orig := range result.WithinBatchDuplicates {
//	    log.Printf("finding %d duplicates %d", dup, orig)
//	}
package deduplication
