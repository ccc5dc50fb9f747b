package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/tourhub/booking-backend/internal/utils"
)

func main() {
	withAdmin := flag.Bool("super-admin", false, "also generate a bootstrap super admin password")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("Secret Generator for Tour Booking Backend")
	fmt.Println("===========================================")
	fmt.Println()

	accessSecret, refreshSecret, err := utils.GenerateJWTSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("Add these to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", accessSecret)
	fmt.Printf("JWT_REFRESH_SECRET=%s\n", refreshSecret)

	if *withAdmin {
		password, err := utils.GenerateSecret(18)
		if err != nil {
			log.Fatalf("Failed to generate super admin password: %v", err)
		}
		fmt.Printf("SUPER_ADMIN_PASSWORD=%s\n", password)
	}

	fmt.Println()
	fmt.Println("Keep these secrets out of version control.")
	fmt.Println("===========================================")
}
