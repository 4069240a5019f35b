// Package pga308 provides register access to a PGA308 sensor signal
// conditioner over its one-wire UART interface.
//
// Every transaction starts with the sync byte 0x55 which the chip also
// uses for baud rate detection, followed by a command byte:
//
//	bit 7    1 = read, 0 = write
//	bit 6    1 = OTP, 0 = RAM
//	bit 0-5  register address
//
// A write carries the 16-bit value low byte first and gets no reply.
// A read is answered with 2 bytes, low byte first. The line is half-duplex
// so the host switches to receive after the read command went out.
//
// RAM registers only accept new values while the chip is in software lock
// mode (SFTC = 0x0050). Configure enters the lock first, then writes and
// reads back each configuration register in a fixed order.
package pga308
