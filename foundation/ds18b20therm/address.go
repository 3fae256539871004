package ds18b20therm

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"periph.io/x/conn/v3/onewire"
)

// FamilyDS18B20 is the first ROM byte of every DS18B20
const FamilyDS18B20 = 0x28

// Address is a 1-Wire ROM id in wire order: family, 6 serial bytes, crc
type Address [8]byte

// ParseAddress accepts the kernel's sysfs name ("28-031724a5d2ff") or the
// 8 ROM bytes in wire order as hex ("28FFD2A5241703D7", "0x28ffd2a5241703d7",
// "28:FF:D2:A5:24:17:03:D7")
func ParseAddress(s string) (Address, error) {
	var addr Address
	s = strings.TrimSpace(s)

	if family, serial, ok := strings.Cut(s, "-"); ok && len(family) == 2 && len(serial) == 12 {
		f, err := hex.DecodeString(family)
		if err != nil {
			return addr, fmt.Errorf("address %q: %w", s, err)
		}
		sn, err := hex.DecodeString(serial)
		if err != nil {
			return addr, fmt.Errorf("address %q: %w", s, err)
		}
		//the kernel prints the serial as a little-endian number
		addr[0] = f[0]
		for i := 0; i < 6; i++ {
			addr[1+i] = sn[5-i]
		}
		addr[7] = onewire.CalcCRC(addr[:7])
		return addr, nil
	}

	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw = strings.ReplaceAll(raw, ":", "")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return addr, fmt.Errorf("address %q: %w", s, err)
	}
	if len(b) != len(addr) {
		return addr, fmt.Errorf("address %q: expected %d bytes, got %d", s, len(addr), len(b))
	}
	copy(addr[:], b)
	if onewire.CalcCRC(addr[:7]) != addr[7] {
		return addr, fmt.Errorf("address %q: crc mismatch", s)
	}
	return addr, nil
}

func (a Address) Family() byte {
	return a[0]
}

// SysfsName is the device directory name under /sys/bus/w1/devices
func (a Address) SysfsName() string {
	var serial [6]byte
	for i := 0; i < 6; i++ {
		serial[i] = a[6-i]
	}
	return fmt.Sprintf("%02x-%s", a[0], hex.EncodeToString(serial[:]))
}

// Uint64 packs the ROM with the family code in the low byte
func (a Address) Uint64() uint64 {
	return binary.LittleEndian.Uint64(a[:])
}

func AddressFromUint64(v uint64) Address {
	var a Address
	binary.LittleEndian.PutUint64(a[:], v)
	return a
}

func (a Address) String() string {
	return strings.ToUpper(hex.EncodeToString(a[:]))
}
