package main

import (
	"flag"
	"fmt"
	"log"

	"periph.io/x/conn/v3/onewire/onewirereg"
	"periph.io/x/host/v3"

	"github.com/jroedel/gluehwodisp/foundation/ds18b20therm"
	"github.com/jroedel/gluehwodisp/foundation/onewirebus"
)

var (
	driver    string
	sysfsRoot string
	busName   string
)

func init() {
	flag.StringVar(&driver, "driver", "sysfs", "sysfs or periph")
	flag.StringVar(&sysfsRoot, "sysfs-root", ds18b20therm.ThermometerDevicesRootPath, "Where the kernel lists w1 devices")
	flag.StringVar(&busName, "bus", "", "The periph onewire bus, empty for the first one")
}

// prints the addresses to paste into the sensors section of the config
func main() {
	flag.Parse()

	var addrs []ds18b20therm.Address
	switch driver {
	case "sysfs":
		fmt.Printf("Assuming we're on a Raspberry Pi, we'll check %#v for connected thermometers\n", sysfsRoot)
		names, err := ds18b20therm.EnumerateThermometers(sysfsRoot)
		if err != nil {
			log.Fatal(err)
		}
		for _, name := range names {
			addr, err := ds18b20therm.ParseAddress(name)
			if err != nil {
				log.Fatal(err)
			}
			addrs = append(addrs, addr)
		}
	case "periph":
		if _, err := host.Init(); err != nil {
			log.Fatal(err)
		}
		bus, err := onewirereg.Open(busName)
		if err != nil {
			log.Fatal(err)
		}
		defer bus.Close()
		fmt.Printf("Searching %s for thermometers\n", bus)
		addrs, err = onewirebus.Enumerate(bus)
		if err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("unknown driver %q", driver)
	}

	if len(addrs) == 0 {
		fmt.Println("We didn't find any :-(")
		return
	}
	fmt.Println("We found these:")
	for _, addr := range addrs {
		fmt.Printf("%s  (rom %s)\n", addr.SysfsName(), addr)
	}
}
