package main

import (
	"log"

	"blocklotto/services/lotterygateway"
)

func main() {
	if err := lotterygateway.Main(); err != nil {
		log.Fatalf("lottery-gateway: %v", err)
	}
}
