// Command filerd runs the filer daemon with the default configuration, or
// the file named by FILER_CONFIG. It is the entry point for service units;
// interactive use goes through `filer daemon run`.
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"filer/internal/config"
	"filer/internal/daemonrun"
)

func main() {
	cfg, path, _, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: strings.TrimSpace(os.Getenv("FILER_LOG_LEVEL")),
	}); err != nil {
		log.Fatalf("filerd (%s): %v", path, err)
	}
}

func configPath() string {
	return strings.TrimSpace(os.Getenv("FILER_CONFIG"))
}
