// Command compliancectl validates template data and scores buildings offline,
// and queries a running compliance service.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
