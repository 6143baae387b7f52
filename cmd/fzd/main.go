package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/friendzone/internal/daemon"
	"github.com/matheus3301/friendzone/internal/profile"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	levelFlag := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	level, err := zapcore.ParseLevel(*levelFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{ProfileName: profileName, LogLevel: level}),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
	)

	app.Run()
}
