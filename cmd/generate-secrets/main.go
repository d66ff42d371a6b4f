package main

import (
	"fmt"
	"log"

	"github.com/travelhub/booking-engine/internal/utils"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret Generator for the Booking Engine")
	fmt.Println("===========================================")
	fmt.Println()

	jwtSecret, signingSecret, err := utils.GenerateServiceSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("Add these to your .env file or secret store:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Printf("PAYMENT_SIGNING_SECRET=%s\n", signingSecret)
	fmt.Println()
	fmt.Println("The signing secret must match the one configured at the payment gateway.")
	fmt.Println("Never commit these values to version control.")
	fmt.Println("===========================================")
}
