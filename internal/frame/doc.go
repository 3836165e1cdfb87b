// Package frame implements the two transport-level frame codecs PurCMC
// speaks: the 12-byte Unix-socket header framing and RFC 6455 WebSocket
// framing. Both codecs expose the same "read one logical message body"
// shape so the rest of the server can stay transport-agnostic.
package frame
