package main

import (
	"github.com/tanpawarit/Chative-Handset-Sales-Agent/cmd"
	_ "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/logger/autoload"
)

func main() {
	cmd.Execute()
}
