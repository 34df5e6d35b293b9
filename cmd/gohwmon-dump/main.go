// Command gohwmon-dump initializes the library against the live host and
// prints every detected chip and channel.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/openhwmon/gohwmon/probe"
	"github.com/openhwmon/gohwmon/sensors"
)

func main() {
	quiet := flag.Bool("q", false, "suppress channels with no readable input")
	flag.Parse()

	tree, err := probe.Init()
	if err != nil {
		log.Fatalf("gohwmon-dump: %v", err)
	}

	defer func() {
		if err := probe.Close(tree); err != nil {
			log.Printf("gohwmon-dump: close: %v", err)
		}
	}()

	dumpTree(os.Stdout, tree, *quiet)
}

func dumpTree(w *os.File, tree *sensors.TreeNode, quiet bool) {
	var collector sensors.CollectChips
	tree.Accept(&collector)

	for i, chip := range collector.Chips {
		path := collector.Paths[i]
		id := chip.Identifier()

		fmt.Fprintf(w, "%s/%s  [%s, %s]\n", path, id.Name, id.Type, id.Bus)

		cfg := chip.Config()
		for t, typeCfg := range cfg.Sensors {
			for ch := range typeCfg.ChannelAttributes {
				dumpChannel(w, chip, t, ch, quiet)
			}
		}
	}
}

func dumpChannel(w *os.File, chip sensors.SensorChip, t sensors.SensorType, ch int, quiet bool) {
	label := chip.ChannelLabel(t, ch)
	if label == "" {
		label = sensors.DefaultChannelLabel(t, ch)
	}

	v, err := chip.ReadFloat(t, sensors.AttrInput, ch)
	if err != nil {
		if quiet {
			return
		}

		fmt.Fprintf(w, "  %-24s %-10s unsupported (%v)\n", label, t, err)

		return
	}

	if math.IsNaN(v) {
		fmt.Fprintf(w, "  %-24s %-10s NaN\n", label, t)

		return
	}

	fmt.Fprintf(w, "  %-24s %-10s %g\n", label, t, v)
}
