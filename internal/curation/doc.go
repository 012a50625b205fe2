// Package curation reduces ranked output to the best record per BIN.
package curation
