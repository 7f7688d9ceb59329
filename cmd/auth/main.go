// Command auth runs the TaskBridge authorization server and platform
// token broker.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aussiebroadwan/taskbridge/internal/auth/app"
)

func main() {
	showVersion := flag.Bool("version", false, "print the build version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Fprintln(os.Stdout, app.BuildVersion)
		return
	}

	srv, err := app.New(app.LoadConfig())
	if err != nil {
		log.Fatalf("taskbridge: startup: %v", err)
	}
	if err := srv.Run(); err != nil {
		log.Fatalf("taskbridge: %v", err)
	}
}
