package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jroedel/gluehwodisp/business/busclient/busconfiggopher"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "path to config file")
}

// validates a config file and prints it with every default filled in
func main() {
	flag.Parse()
	if configPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	cg, err := busconfiggopher.New(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	config, err := cg.FetchConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(config); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
