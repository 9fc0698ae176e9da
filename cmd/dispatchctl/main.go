package main

import (
	"fmt"
	"os"

	"github.com/unclebandit/coupon-dispatch/internal/cli"
)

func main() {
	if err := cli.RootCmd(cli.FromEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
