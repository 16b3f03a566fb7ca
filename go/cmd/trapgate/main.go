package main

import (
	"github.com/lunixbochs/trapgate/go/cmd"

	_ "github.com/lunixbochs/trapgate/go/cmd/dump"
	_ "github.com/lunixbochs/trapgate/go/cmd/run"
)

func main() { cmd.Main() }
