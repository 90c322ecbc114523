// Package protocol implements the line-oriented wire format spoken by botd.
//
// Requests are ASCII lines terminated by "\r\n". Each line is split on
// whitespace into a command name followed by its parameters. Numeric
// parameters are decimal unless prefixed with "0x"; byte-buffer parameters
// are hex pairs with a "0x" prefix. Replies are raw bytes, or, in the legacy
// compatibility mode of the socket transport, uppercase hex text.
package protocol
