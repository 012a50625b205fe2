// Package preflight provides readiness checks for the paths and remote
// services boldrank depends on.
//
// The "boldrank check" command runs RunAll and prints one line per result.
// The images command runs CheckImageAPI before committing to a long lookup
// so an unreachable endpoint fails fast instead of turning every record
// Unknown.
package preflight
