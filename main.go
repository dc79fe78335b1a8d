package main

import (
	"flag"

	"go.uber.org/fx"

	"github.com/joshuarp/branchdesk/internal/app"
)

var defaultBin string

func selectedModules(binValue string) []fx.Option {
	switch app.NormalizeBin(binValue) {
	case app.BinWatch:
		return []fx.Option{
			app.ClientModule(),
			app.WatcherModule(),
		}
	case app.BinMockAPI:
		return []fx.Option{
			app.MockAPIModule(),
		}
	default:
		return []fx.Option{
			app.MockAPIModule(),
			app.ClientModule(),
			app.WatcherModule(),
		}
	}
}

func main() {
	bin := flag.String("bin", defaultBin, "select binary: watch|mockapi (default: all)")
	flag.Parse()

	app.New(*bin, selectedModules(*bin)...).Run()
}
