// Package criteria evaluates the per-record quality predicates that feed the
// ranking.
//
// Every criterion is a pure function of one record, registered at compile time
// under its upper-case name. The literal match lists are compatibility-critical:
// downstream tiers were calibrated against them, so edit them only together
// with a re-ranking of the archive.
//
// HAS_IMAGE is registered so selectors and column checks can name it, but it is
// delegated to the images package and never evaluated here.
package criteria
