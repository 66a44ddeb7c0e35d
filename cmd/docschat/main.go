// Command docschat is the entry point for the DocsChat documentation
// assistant. It provides a CLI (via Cobra) for building the retrieval index,
// asking one-shot questions, and running the HTTP chat server.
package main

import (
	"fmt"
	"os"

	"github.com/docschat/docschat-go/cmd/docschat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
