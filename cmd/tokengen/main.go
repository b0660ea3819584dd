package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"

	"chat-relay/auth"
)

// tokengen mints a signed credential for local development and manual
// testing against a running relay.
func main() {
	uid := flag.String("uid", "", "Identity id to embed (random UUID when empty)")
	phone := flag.String("phone", "+33600000000", "Phone number claim")
	duration := flag.Duration("duration", 24*time.Hour, "Token lifetime")
	secret := flag.String("secret", os.Getenv("TOKEN_SECRET"), "Signing secret (defaults to TOKEN_SECRET)")
	flag.Parse()

	if *secret == "" {
		log.Fatal("A signing secret is required: pass -secret or set TOKEN_SECRET")
	}
	if *uid == "" {
		*uid = uuid.NewString()
	}

	auth.SetSigningKey([]byte(*secret))
	token, err := auth.GenerateToken(*uid, *phone, *duration)
	if err != nil {
		log.Fatal("Error while generating token: ", err)
	}

	fmt.Println(color.New(color.FgGreen).Render("uid:   "), *uid)
	fmt.Println(color.New(color.FgGreen).Render("phone: "), *phone)
	fmt.Println(color.New(color.FgGreen).Render("expiry:"), time.Now().Add(*duration).Format(time.RFC3339))
	fmt.Println(token)
}
