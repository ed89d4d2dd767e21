// Command devtoken prints a caller token signed with the configured key, for
// local testing against a running server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "supplyledger/internal/jwt_token"
	"supplyledger/internal/platform/config"
	"supplyledger/pkg/domain"
)

func main() {
	sub := flag.String("sub", "", "caller address (0x-prefixed, 40 hex digits)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	caller, err := domain.ParseAddress(*sub)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: -sub: %v\n", err)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	token, err := tokens.GenerateCallerToken(caller, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "devtoken: caller %s, expires in %s\n", caller.Checksummed(), *ttl)
	fmt.Println(token)
}
