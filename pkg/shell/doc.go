// Package shell turns configuration variables into shell source that a
// user evaluates in their own shell, for example
//
//	eval "$(envswitch use dev)"
//
// Every function is pure: the caller supplies the shell identifier and the
// variables, and receives text.
package shell
