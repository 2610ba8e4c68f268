package main

import (
	"os"

	"github.com/corrtrace/corrtrace/internal/cli"
)

func main() {
	cli.InitRoot()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
