// Package native describes the C-style contract of the EBCC codec and provides the
// libraries that implement it.
//
// The contract mirrors ebcc_codec.h: a compressor context is created and destroyed
// explicitly, encode takes a flat element buffer plus a codec_config_t and returns a
// buffer allocated by the library, decode returns a flat element buffer allocated by
// the library, and every such buffer must be handed back through FreeBuffer exactly
// once. Failures are reported as integer status codes, with an optional message kept
// on the context until the next call.
//
// Two libraries are available:
//   - Reference(): a pure Go implementation of the contract. It quantizes values under
//     the configured error bound and entropy codes the result with the compress
//     package. It is the default and is safe for concurrent use across contexts.
//   - NativeLibrary(): a cgo binding to libebcc, compiled with `-tags ebcc_native`.
//
// Nothing in this package is memory safe on its own: OutputBuffer.Data aliases library
// memory that becomes invalid once FreeBuffer returns. The codec package is the safe
// layer on top.
package native
