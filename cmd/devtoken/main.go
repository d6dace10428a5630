// Package main mints ID tokens for AUTH_PROVIDER=local.
//
// The server never issues tokens itself; in production the browser gets
// them from Firebase. For local development this tool signs a token with
// LOCAL_AUTH_SECRET that the local verifier accepts, so the admin routes can
// be exercised with curl.
//
// Usage:
//
//	go run ./cmd/devtoken -email owner@quantfident.com -name "Site Owner"
//	TOKEN=$(go run ./cmd/devtoken -email owner@quantfident.com)
//	curl -H "Authorization: Bearer $TOKEN" localhost:8080/api/auth/session
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sakif/quantfident-cms/internal/auth"
	"github.com/sakif/quantfident-cms/internal/model"
)

var (
	uid      = flag.String("uid", "", "subject (defaults to local-<email>)")
	email    = flag.String("email", "", "email address (required)")
	name     = flag.String("name", "", "display name")
	photo    = flag.String("photo", "", "photo URL")
	verified = flag.Bool("verified", true, "mark the email as verified")
	ttl      = flag.Duration("ttl", auth.DefaultLocalTokenTTL, "token lifetime")
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("reading .env: %v", err)
	}

	if strings.TrimSpace(*email) == "" {
		flag.Usage()
		os.Exit(2)
	}

	subject := *uid
	if subject == "" {
		subject = "local-" + strings.ToLower(strings.TrimSpace(*email))
	}

	v, err := auth.NewLocalVerifier(os.Getenv("LOCAL_AUTH_SECRET"))
	if err != nil {
		log.Fatalf("LOCAL_AUTH_SECRET: %v", err)
	}

	token, err := v.Issue(model.Identity{
		UID:           subject,
		Email:         strings.TrimSpace(*email),
		EmailVerified: *verified,
		DisplayName:   *name,
		PhotoURL:      *photo,
	}, *ttl)
	if err != nil {
		log.Fatalf("issuing token: %v", err)
	}

	fmt.Println(token)
}
