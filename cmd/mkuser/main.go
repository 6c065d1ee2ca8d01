// mkuser seeds an identity record and prints a signed bearer token for
// it. Identity management belongs to the external auth service; this tool
// exists so the engine can be run and exercised without it.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/inkboard/inkboard/internal/config"
	"github.com/inkboard/inkboard/internal/database"
	"github.com/inkboard/inkboard/internal/domain"
	postgresrepo "github.com/inkboard/inkboard/internal/repository/postgres"
)

func main() {
	username := flag.String("username", "", "unique username")
	displayName := flag.String("name", "", "display name (defaults to username)")
	password := flag.String("password", "", "password to hash into the record")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed token")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("usage: mkuser -username <name> -password <pw> [-name <display>] [-token-ttl <dur>]")
	}
	if *displayName == "" {
		*displayName = *username
	}

	cfg := config.Load()
	pool, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	ctx := context.Background()
	users := postgresrepo.NewUserRepo(pool)

	existing, err := users.GetByUsername(ctx, *username)
	if err != nil {
		log.Fatal(err)
	}
	if existing != nil {
		log.Fatalf("username %q already exists", *username)
	}

	hash, err := hashPassword(*password)
	if err != nil {
		log.Fatal(err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     *username,
		DisplayName:  *displayName,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatal(err)
	}

	token, err := signToken(user.ID, cfg.JWTSecret, *tokenTTL)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("user %s created\nid:    %s\ntoken: %s\n", user.Username, user.ID, token)
}

func signToken(userID uuid.UUID, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return fmt.Sprintf("%s:%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}
