package main

import (
	"eduplus-export/cmd/eduplus-export/commands"
	"eduplus-export/pkg/serviceutil"
)

func main() {
	ctx, stop := serviceutil.SignalContext()
	err := commands.ExecuteContext(ctx)
	stop()
	if err != nil {
		serviceutil.Fatal("command failed", err)
	}
}
