package main

import (
	"github.com/mailmend/mailmend/cmd/mailmend/cmd"
)

func main() {
	cmd.Execute()
}
