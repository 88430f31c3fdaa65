package main

import (
	"coursetrack/cmd/coursetrack/commands"
	"coursetrack/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
