package main

import (
	"log"

	"blocklotto/services/lotteryd"
)

func main() {
	if err := lotteryd.Main(); err != nil {
		log.Fatalf("lotteryd: %v", err)
	}
}
