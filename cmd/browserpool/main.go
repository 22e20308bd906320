// Command browserpool serves pooled headless browser sessions over HTTP.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
