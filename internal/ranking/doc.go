// Package ranking merges criterion verdicts into a data-quality tier.
//
// Rank applies a fixed decision table. Records whose species is not
// identified are tier 0. Otherwise the first matching rule wins, from tier 1
// (type specimen) down to tier 6 (sequence quality only), and records
// matching none are tier 0. A criterion without a verdict counts as failed.
//
// Index holds the criterion side of the merge in memory and Apply streams
// the record side through it, so only the smaller input has to fit in RAM.
package ranking
