// Package main is the entry point for pricefollower.
package main

import (
	"os"

	"github.com/donaldgifford/pchome-price-follower/cmd/pricefollower/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
