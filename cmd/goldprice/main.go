
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/Armin-kho/doviz-board/internal/config"
	"github.com/Armin-kho/doviz-board/internal/utils"
)

// goldprice sets the manual XAU/USD price the world gold resolver falls back
// to when every online provider fails.
func main() {
	cfgPath := flag.String("config", config.DefaultConfigPath(), "path to config.yaml")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: goldprice [-config path] <xau-usd-price>\n\nexample: goldprice 2650.50\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	price, err := parse(flag.Arg(0))
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := config.SetManualGoldPrice(*cfgPath, price); err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Printf("world_gold.manual_price = %.2f written to %s\nrestart the service to apply it\n", price, *cfgPath)
}

func parse(arg string) (float64, error) {
	price, ok := utils.ParsePrice(strings.TrimPrefix(arg, "$"))
	if !ok {
		return 0, fmt.Errorf("invalid price %q", arg)
	}
	if !utils.WorldGoldBand.Contains(price) {
		return 0, fmt.Errorf("price %s out of range (%.0f-%.0f USD/oz)",
			strconv.FormatFloat(price, 'f', -1, 64), utils.WorldGoldBand.Min, utils.WorldGoldBand.Max)
	}
	return price, nil
}
