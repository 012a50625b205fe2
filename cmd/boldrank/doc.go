// Command boldrank ranks BOLD specimen records by data quality.
//
// A typical run loads a dump into the store, links taxonomy, assesses the
// local criteria, checks image availability, and ranks:
//
//	boldrank load records.tsv
//	boldrank taxonomy
//	boldrank assess --persist
//	boldrank images --persist
//	boldrank rank --output ranked.tsv
//	boldrank curate ranked.tsv --output best.tsv
//
// Every stage also works on plain TSV files without the store.
package main
