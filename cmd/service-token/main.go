// service-token mints a signed bearer token for service-to-service calls to
// the internal ops endpoints (/internal/ops/*). The token carries the admin
// role and expires after TOKEN_HOUR_LIFESPAN hours.
//
// Usage:
//
//	API_SECRET=... TOKEN_HOUR_LIFESPAN=24 go run ./cmd/service-token --user-id 0
package main

import (
	"flag"
	"fmt"
	"os"

	"bitbucket.org/nordfoods/mrp_backend/models"
	"bitbucket.org/nordfoods/mrp_backend/utils"
)

func main() {
	userID := flag.Int("user-id", 0, "User id to embed in the token (0 = system)")
	role := flag.String("role", string(models.UserRoleAdmin), "Role claim; internal ops require the admin role")
	flag.Parse()

	token, err := utils.JwtGenerate(*userID, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generating token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
