// Package codec implements the Gree envelope cipher: AES-128-ECB over
// 16-byte blocks with PKCS7 padding, base64-encoded on the wire.
//
// The codec is pure and stateless. Scan responses and bind exchanges use
// the fixed, publicly known GenericKey; all later exchanges with a device
// use the per-device session key issued at bind time.
package codec
