// Package testsupport holds fixtures shared by package tests: temp-dir
// configs, opened stores, and TSV files.
package testsupport
