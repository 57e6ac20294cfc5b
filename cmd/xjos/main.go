// Command xjos drives the kernel simulator: formatting disk images, booting
// an instance over one, and running either a scripted workload or the
// interactive shell applet against it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
