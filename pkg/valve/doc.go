// Package valve encodes the fill/dump/check valve state into a 3-bit
// opcode and guards the outputs against forbidden combinations.
package valve

// Bit layout of a Code:
//
//   bit 2  fill valve
//   bit 1  dump valve
//   bit 0  check valve
//
// A set bit means the solenoid is energized (open).
//
// Codes 1, 3, 6 and 7 are unsafe: 1 is a don't-care state, the others
// open conflicting valves. The Latch never lets an unsafe code reach
// the outputs; it holds the last safe code instead.
