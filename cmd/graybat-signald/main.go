// Command graybat-signald runs the signaling service (C2) standalone:
// the central rendezvous every communicator bootstraps against for
// context ids, vaddr assignment and URI lookup.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jabolina/graybat/pkg/graybat/definition"
	"github.com/jabolina/graybat/pkg/graybat/signaling"
)

var (
	app = kingpin.New("graybat-signald", "Signaling service for graybat context/vaddr bootstrap.")

	listenAddr = app.Flag("listen", "Address to bind the signaling gRPC service on.").
			Short('l').Default("0.0.0.0:7711").String()

	debug = app.Flag("debug", "Enable debug-level logging.").Bool()
)

func init() {
	app.Version(version.Print("graybat-signald"))
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := definition.NewDefaultLogger()
	log.ToggleDebug(*debug)

	srv, err := signaling.Listen(*listenAddr, log)
	if err != nil {
		log.Fatalf("failed to start signaling service: %v", err)
	}
	log.Infof("signaling service listening on %s (%s)", srv.Addr(), version.Version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	select {
	case <-sigCh:
		log.Info("shutting down signaling service")
		srv.Stop()
	case err := <-errCh:
		if err != nil {
			log.Errorf("signaling service stopped: %v", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
