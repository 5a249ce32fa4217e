// Package hash provides the checksum used by archive envelopes and blob
// manifests.
//
// All checksums use CRC32-Castagnoli (CRC32C), which is hardware accelerated
// on x86 (SSE4.2) and ARM (CRC extension).
//
//	sum := hash.CRC32C(payload)
package hash
