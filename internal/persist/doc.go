// Package persist writes the records of one tag kind to a CSV file and a
// JSON file named after the source host, the tag kind and the time of the
// write. Write failures are reported in the Result and logged; they never
// abort the caller.
package persist
