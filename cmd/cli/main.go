// Command cli looks up quotes from the terminal using the same tiers as the
// HTTP service.
package main

func main() {
	NewRootCommand().Execute()
}
