package main

import (
	"buildingsearch/cmd/hcr-cli/commands"
	"buildingsearch/internal/components/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
