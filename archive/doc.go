// Package archive serializes partial results, results and models into
// self-describing byte streams so they can cross process boundaries between
// protocol roles.
//
// # Envelope
//
// Every archive starts with a fixed 32-byte header:
//
//	magic "STWA" | version u16 | compression u8 | flags u8 | tag u32 |
//	raw length u64 | payload length u64 | CRC32-C(payload) u32
//
// followed by the (optionally compressed) payload written by the object's
// MarshalArchive method. The tag identifies the concrete type so a Registry
// can reconstruct it.
//
// # Registration
//
// Tags are not registered by package init functions. Each algorithm package
// exposes a Register(*Registry) function and the application registers what
// it needs once at startup, before decoding anything:
//
//	reg := archive.NewRegistry()
//	if err := kmeansinit.Register(reg); err != nil { ... }
//	reg.Seal()
//	obj, err := reg.Decode(data)
package archive
