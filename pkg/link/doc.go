// Package link frames and filters packets exchanged between the
// Command Unit and the Actuator Unit.
package link

// Every packet on air is:
//
//   [destination:1][source:1][payload:N]
//
// There is no length prefix: the payload length comes from the packet
// boundary signalled by the transport. There is no checksum either.
// A unit knows exactly one peer, and the only integrity check is the
// static address pair. Anything else is dropped.
//
// Payloads:
//
//   opcode frame  exactly one byte, a valve code in 0-7
//   sensor frame  ASCII "<f1>|<f2>|<f3...>" (see package sensor)
//
// Producer: either unit
// Consumer: its paired peer
