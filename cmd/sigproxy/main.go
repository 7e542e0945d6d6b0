// Command sigproxy verifies draft-cavage HTTP signatures in front of an
// upstream service, optionally re-signing forwarded requests and signing
// responses. The sign subcommand signs a raw HTTP request read from a file
// or stdin.
package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "sigproxy",
		Usage:   "HTTP signature verifying and signing proxy",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML document with policy, targets and clients (overrides SIGPROXY_CONFIG)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (overrides SIGPROXY_LOG_LEVEL)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			signCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logrus.WithError(err).Fatal("sigproxy failed")
	}
}
