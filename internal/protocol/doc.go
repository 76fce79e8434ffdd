// Package protocol owns the command/acknowledgment contract spoken with the vehicle.
//
// Ownership boundary:
// - signal data (command + parameter) and its match rule
// - typed payloads (calibration settings)
// - inbound event variants
// - message <-> frame encoding; frame/tlv/schema primitives live in subpackages
package protocol
