// Package notify prints styled status messages for the envswitch CLI and
// masks secret-looking values in human-readable listings.
//
// Messages default to stderr. Colors follow fatih/color, which disables
// itself when the output is not a terminal or NO_COLOR is set.
package notify
