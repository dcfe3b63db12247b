package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/veesix-networks/aasbus/pkg/version"
)

var serverAddr = flag.String("server", "localhost:8080", "aasbusd API address")

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("aasbusctl", version.Full())
		return
	}

	client, err := NewClient(*serverAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cli := NewCLI(client, *serverAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigCh {
			if sig == os.Interrupt && cli.Interrupt() {
				continue
			}
			fmt.Println("\nShutting down...")
			cli.Stop()
			os.Exit(0)
		}
	}()

	if err := cli.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
