// Package cli parses command-line arguments, validates them, resolves the
// password, wires the Qualys session to the remediation runner, and maps
// failures to process exit codes.
package cli
