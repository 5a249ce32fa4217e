// Package exchange moves partial results between the nodes of a
// distributed computation.
//
// A Transport ships one archived object under a Key and returns what the
// receiving side sees. Direct hands the object over in-process. Exchange
// encodes the object into an archive, writes it to a blobstore and decodes
// it again through the registry, which is the same path a result takes
// between processes.
//
// For multi-process runs, producers Publish their outputs and CommitStep a
// step once every node has delivered; consumers Fetch only from committed
// steps. The commit log (in memory or DynamoDB) makes that ordering hold
// across machines.
package exchange
