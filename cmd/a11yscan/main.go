// Package main provides the entry point for the a11yscan CLI.
//
// a11yscan discovers the pages of a web site, samples a representative set
// of them and audits the sample with pluggable accessibility analyzers.
//
// Usage:
//
//	a11yscan discover <url>
//	a11yscan scan <url>
//	a11yscan sessions [id]
//
// See --help for all available options.
package main

// main is the entry point for a11yscan.
func main() {
	Execute()
}
