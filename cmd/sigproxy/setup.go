package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/vitalvas/cavage/config"
)

// loadSettings reads settings from the environment and applies the
// global flags on top.
func loadSettings(cmd *cli.Command) (config.Settings, error) {
	s, err := config.LoadSettings()
	if err != nil {
		return config.Settings{}, err
	}

	if cmd.IsSet("config") {
		s.ConfigPath = cmd.String("config")
	}

	if cmd.IsSet("log-level") {
		s.LogLevel = cmd.String("log-level")
	}

	return s, s.Validate()
}

func newLogger(out io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(lvl)

	return logger, nil
}
