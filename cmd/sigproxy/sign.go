package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/vitalvas/cavage/config"
	"github.com/vitalvas/cavage/httpsig"
)

func signCommand() *cli.Command {
	return &cli.Command{
		Name:      "sign",
		Usage:     "Sign a raw HTTP/1.1 request and print it",
		ArgsUsage: "[request-file]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "target",
				Aliases:  []string{"t"},
				Required: true,
				Usage:    "name of the target in the config document",
			},
			&cli.BoolFlag{
				Name:  "digest",
				Usage: "also set the Digest header",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.Load(s.ConfigPath, nil)
			if err != nil {
				return err
			}

			in := io.Reader(os.Stdin)

			if path := cmd.Args().First(); path != "" && path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()

				in = f
			}

			return runSign(cfg, cmd.String("target"), cmd.Bool("digest"), in, os.Stdout)
		},
	}
}

// runSign reads one request from in, signs it for the named target and
// writes the signed request to out.
func runSign(cfg *config.Config, targetName string, digest bool, in io.Reader, out io.Writer) error {
	target, err := cfg.Target(targetName)
	if err != nil {
		return err
	}

	req, err := http.ReadRequest(bufio.NewReader(in))
	if err != nil {
		return fmt.Errorf("reading request: %w", err)
	}

	if digest {
		if err := httpsig.SetDigest(req, target.Canonical.DigestEncoding); err != nil {
			return err
		}
	}

	if err := httpsig.SignRequest(req, target); err != nil {
		return err
	}

	dump, err := httputil.DumpRequest(req, true)
	if err != nil {
		return err
	}

	_, err = out.Write(dump)

	return err
}
