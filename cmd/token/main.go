// File: cmd/token/main.go
package main

import (
	"flag"
	"fmt"
	"log"

	"streamshare/internal/config"
	"streamshare/internal/infra/api"
)

func main() {
	subject := flag.String("subject", "admin", "token subject")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	tok, err := api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL).Mint(*subject)
	if err != nil {
		log.Fatalf("mint: %v", err)
	}
	fmt.Println(tok)
}
