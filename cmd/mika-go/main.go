package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/mikahq/mika-go/internal/application/startup"
	"github.com/mikahq/mika-go/internal/infrastructure/security"
	"github.com/mikahq/mika-go/pkg/config"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := mintToken(os.Args[2:], os.Stdout); err != nil {
			log.Fatalf("token: %v", err)
		}
		return
	}

	if err := startup.Initialize(); err != nil {
		log.Fatalf("Application startup failed: %v", err)
	}

	log.Println("Application has shut down gracefully.")
}

// mintToken prints a workspace-scoped bearer token signed with JWT_SECRET.
func mintToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace id the token is scoped to")
	subject := fs.String("subject", "operator", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workspace == "" {
		return fmt.Errorf("-workspace is required")
	}
	if config.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	token, err := security.GenerateWorkspaceToken(*workspace, *subject, config.JWTSecret, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
