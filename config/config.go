// Package config loads per-station network configuration: the bind IP and
// the four channel ports needed to stand up both antennas, plus the
// station's own MMSI/call sign/name. Values come from a YAML file with
// command-line flag overrides layered on top.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Station holds one station's identity and network settings: the bind
// address, the relay server address and netmask (for broadcast
// derivation), and the four channel ports.
type Station struct {
	MMSI     uint32 `yaml:"mmsi"`
	CallSign string `yaml:"call_sign"`
	Name     string `yaml:"name"`

	IP              string `yaml:"ip"`
	ServerIP        string `yaml:"server_ip"`
	ServerIPNetmask string `yaml:"server_ip_netmask"`

	Port87BReception int `yaml:"port_87b_reception"`
	Port88BReception int `yaml:"port_88b_reception"`
	Port87BBroadcast int `yaml:"port_87b_broadcast"`
	Port88BBroadcast int `yaml:"port_88b_broadcast"`
}

// Default returns sane single-host defaults usable for local simulation
// without a config file.
func Default() Station {
	return Station{
		MMSI:             123456789,
		CallSign:         "default",
		Name:             "superbateau",
		IP:               "127.0.0.1",
		ServerIP:         "127.0.0.1",
		ServerIPNetmask:  "255.255.255.0",
		Port87BReception: 28760,
		Port88BReception: 28761,
		Port87BBroadcast: 28762,
		Port88BBroadcast: 28763,
	}
}

// Load reads a YAML config file at path into Default()'s values, leaving
// any field the file omits at its default.
func Load(path string) (Station, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// FlagSet registers pflag overrides for every Station field onto fs, each
// bound to the matching field of cfg. Copying the explicitly set flags onto
// a file-loaded configuration is done separately by ApplyOverrides.
func FlagSet(fs *pflag.FlagSet, cfg *Station) {
	fs.Uint32Var(&cfg.MMSI, "mmsi", cfg.MMSI, "station MMSI")
	fs.StringVar(&cfg.CallSign, "call-sign", cfg.CallSign, "station call sign")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "vessel name")
	fs.StringVar(&cfg.IP, "ip", cfg.IP, "local bind address for the antennas")
	fs.StringVar(&cfg.ServerIP, "server-ip", cfg.ServerIP, "relay server address")
	fs.StringVar(&cfg.ServerIPNetmask, "server-ip-netmask", cfg.ServerIPNetmask, "relay server netmask")
	fs.IntVar(&cfg.Port87BReception, "port-87b-rx", cfg.Port87BReception, "87B channel reception port")
	fs.IntVar(&cfg.Port88BReception, "port-88b-rx", cfg.Port88BReception, "88B channel reception port")
	fs.IntVar(&cfg.Port87BBroadcast, "port-87b-tx", cfg.Port87BBroadcast, "87B channel broadcast port")
	fs.IntVar(&cfg.Port88BBroadcast, "port-88b-tx", cfg.Port88BBroadcast, "88B channel broadcast port")
}

// ApplyOverrides copies onto dst every field whose flag the user set
// explicitly on the command line, so a file-loaded configuration keeps its
// values for everything the user left untouched.
func ApplyOverrides(fs *pflag.FlagSet, dst, src *Station) {
	if fs.Changed("mmsi") {
		dst.MMSI = src.MMSI
	}
	if fs.Changed("call-sign") {
		dst.CallSign = src.CallSign
	}
	if fs.Changed("name") {
		dst.Name = src.Name
	}
	if fs.Changed("ip") {
		dst.IP = src.IP
	}
	if fs.Changed("server-ip") {
		dst.ServerIP = src.ServerIP
	}
	if fs.Changed("server-ip-netmask") {
		dst.ServerIPNetmask = src.ServerIPNetmask
	}
	if fs.Changed("port-87b-rx") {
		dst.Port87BReception = src.Port87BReception
	}
	if fs.Changed("port-88b-rx") {
		dst.Port88BReception = src.Port88BReception
	}
	if fs.Changed("port-87b-tx") {
		dst.Port87BBroadcast = src.Port87BBroadcast
	}
	if fs.Changed("port-88b-tx") {
		dst.Port88BBroadcast = src.Port88BBroadcast
	}
}

// BroadcastIP computes the IPv4 broadcast address for ServerIP/
// ServerIPNetmask.
func (s Station) BroadcastIP() (string, error) {
	ipInt, err := ipv4ToUint32(s.ServerIP)
	if err != nil {
		return "", err
	}
	maskInt, err := ipv4ToUint32(s.ServerIPNetmask)
	if err != nil {
		return "", err
	}
	broadcast := ipInt | (^maskInt)
	return uint32ToIPv4(broadcast), nil
}

func ipv4ToUint32(ip string) (uint32, error) {
	var a, b, c, d uint32
	n, err := fmt.Sscanf(ip, "%d.%d.%d.%d", &a, &b, &c, &d)
	if err != nil || n != 4 {
		return 0, fmt.Errorf("config: invalid IPv4 address %q", ip)
	}
	return a<<24 | b<<16 | c<<8 | d, nil
}

func uint32ToIPv4(v uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", (v>>24)&0xFF, (v>>16)&0xFF, (v>>8)&0xFF, v&0xFF)
}
