// Package main provides the entry point for the commprobe CLI.
//
// Commprobe watches discussion communities for conversations about a
// configured set of products and companies. It discovers candidate posts,
// walks their comment trees within a strict request budget, and emits a
// normalized batch of relevant, deduplicated content.
//
// Usage:
//
//	commprobe crawl --sources LawFirm,paralegal --keywords Supio,EvenUp
//	commprobe watch --schedule "0 */6 * * *"
//
// See --help for all available options.
package main

// main is the entry point for commprobe.
func main() {
	Execute()
}
