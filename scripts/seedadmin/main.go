// Command seedadmin creates or updates an application user directly in the
// database. Intended for bootstrapping the first account in a fresh
// environment; regular user management happens through the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tidyshare/tidyshare-api/pkg/config"
	"github.com/tidyshare/tidyshare-api/pkg/database"
)

func main() {
	var (
		email    string
		password string
		fullName string
		timeout  time.Duration
	)

	flag.StringVar(&email, "email", "", "login email for the account")
	flag.StringVar(&password, "password", "", "plaintext password, hashed before storage")
	flag.StringVar(&fullName, "name", "Administrator", "display name")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "database operation timeout")
	flag.Parse()

	if email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "both -email and -password are required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	const query = `INSERT INTO users (id, email, password_hash, full_name, active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
	ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash, full_name = EXCLUDED.full_name, active = TRUE, updated_at = NOW()`
	if _, err := db.ExecContext(ctx, query, uuid.NewString(), email, string(hash), fullName); err != nil {
		log.Fatalf("failed to upsert user: %v", err)
	}

	fmt.Printf("user %s ready\n", email)
}
