// Package extract turns a fetched HTML document into records, one sequence
// per requested tag kind, using goquery for element lookup.
package extract
