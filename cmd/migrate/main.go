// File: cmd/migrate/main.go
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"

	"streamshare/internal/config"
	"streamshare/internal/infra/db/migrations"
)

func usage() {
	fmt.Println("usage: migrate [-config path] up|down|goto N|status")
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.Driver == "memory" {
		log.Fatalf("database.driver is memory; nothing to migrate")
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return
	}

	m, err := migrations.New(cfg.Database.URL)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	defer m.Close()

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "goto":
		if len(args) < 2 {
			usage()
			return
		}
		v, perr := strconv.ParseUint(args[1], 10, 32)
		if perr != nil {
			log.Fatalf("bad version %q: %v", args[1], perr)
		}
		err = m.Goto(uint(v))
	case "status":
	default:
		usage()
		return
	}
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}

	v, dirty, ok, err := m.Version()
	if err != nil {
		log.Fatalf("version: %v", err)
	}
	if !ok {
		fmt.Println("no migrations applied")
		return
	}
	fmt.Printf("version=%d dirty=%t\n", v, dirty)
}
