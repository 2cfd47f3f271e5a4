// Command token mints actor tokens for registers and back-office users.
//
//	go run ./cmd/tools/token -sub cashier-7 -role cashier -perms transactions:create
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/noah-isme/grocery-pos/internal/auth"
	"github.com/noah-isme/grocery-pos/internal/common"
)

var roles = map[string][]string{
	"cashier":    {common.PermTransactionsCreate},
	"supervisor": {common.PermTransactionsCreate, common.PermTransactionsVoid, common.PermTransactionsRefund},
	"manager": {common.PermTransactionsCreate, common.PermTransactionsVoid, common.PermTransactionsRefund,
		common.PermInventoryAdjust, common.PermCouponsManage},
}

func main() {
	_ = godotenv.Load()

	sub := flag.String("sub", "", "actor id")
	role := flag.String("role", "cashier", "cashier, supervisor or manager")
	perms := flag.String("perms", "", "comma separated permissions; defaults to the role's set")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if *sub == "" {
		log.Fatal("-sub is required")
	}
	permissions := roles[*role]
	if *perms != "" {
		permissions = strings.Split(*perms, ",")
	}
	if permissions == nil {
		log.Fatalf("unknown role %q", *role)
	}

	tokens, err := auth.NewTokens(auth.TokensConfig{
		Secret:   os.Getenv("JWT_SECRET"),
		Issuer:   envOrDefault("JWT_ISSUER", "grocery-pos"),
		Audience: os.Getenv("JWT_AUDIENCE"),
		TTL:      *ttl,
	})
	if err != nil {
		log.Fatal(err)
	}
	signed, expiresAt, err := tokens.Sign(common.Actor{ID: *sub, Role: *role, Permissions: permissions})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(signed)
	log.Printf("expires %s", expiresAt.Format(time.RFC3339))
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
