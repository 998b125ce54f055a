// Package rx turns a serial byte stream from a radio-control receiver into
// published channel values.
//
// A Decoder has two sides:
//   - the producer calls OnByte (or Feed) for every byte read from the UART;
//   - the consumer polls CheckFrameStatus at its own cadence and, after it
//     reports a completed frame, reads values with ReadChannel.
//
// Exactly one goroutine may act as producer and one as consumer. The two
// sides share only atomics: completed frames are published as immutable
// snapshots, and the stale-frame watchdog hands its reset to the producer
// with a compare-and-swap on the assembler cursor.
//
// The wire protocol is described by a Format; see package sumd.
package rx
