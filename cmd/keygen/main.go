// cmd/keygen/main.go
//
// keygen prints a signed API key for the /functions and /admin routes.
//
//	HAVEN_JWT_SECRET=... keygen -role anon
//	HAVEN_JWT_SECRET=... keygen -role service_role -ttl 720h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rexlx/mindhaven/internal/apikey"
)

func main() {
	role := flag.String("role", string(apikey.RoleAnon), "key role: anon or service_role")
	ttl := flag.Duration("ttl", 0, "key lifetime, 0 for no expiry")
	flag.Parse()

	secret := os.Getenv("HAVEN_JWT_SECRET")
	if len(secret) < 32 {
		log.Fatal("HAVEN_JWT_SECRET must be set to at least 32 characters")
	}
	r := apikey.Role(*role)
	if !r.Valid() {
		log.Fatalf("unknown role %q", *role)
	}
	key, err := apikey.Mint([]byte(secret), r, *ttl, time.Now())
	if err != nil {
		log.Fatalf("mint key: %v", err)
	}
	fmt.Println(key)
}
