package main

import (
	"fmt"
	"os"

	"github.com/unkn0wn-root/entcache/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "entcache:", err)
		os.Exit(1)
	}
}
