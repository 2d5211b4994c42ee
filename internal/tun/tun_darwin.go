//go:build darwin

package tun

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strings"

	"github.com/songgao/water"
)

func isIPv4(ip net.IP) bool { return ip.To4() != nil }

func isIPv6(ip net.IP) bool {
	if ip.To4() != nil {
		return false
	}
	return ip.To16() != nil
}

func genErr(out []byte, err error) error {
	if err == nil {
		return nil
	}
	if len(out) != 0 {
		return fmt.Errorf("%v, output: %s", err, out)
	}
	return err
}

// Open creates a TUN device, assigns cfg.Address (if set) and cfg.MTU via
// ifconfig, matching the teacher's tun_darwin.go shape almost exactly (the
// original addresses a single v4/v6 address with a synthetic link-local
// sibling; the engine only needs the single address spec.md's config
// describes, so the link-local-sibling step is dropped).
func Open(cfg Config) (io.ReadWriteCloser, error) {
	dev, err := water.New(water.Config{DeviceType: water.TUN})
	if err != nil {
		return nil, fmt.Errorf("tun: failed to create water tun: %v", err)
	}
	name := dev.Name()

	if cfg.MTU > 0 {
		out, err := exec.Command("ifconfig", name, "mtu", fmt.Sprint(cfg.MTU)).CombinedOutput()
		if err != nil {
			dev.Close()
			return nil, genErr(out, err)
		}
	}

	if cfg.Address != nil {
		ip := cfg.Address.IP
		ones, _ := cfg.Address.Mask.Size()

		var params string
		if isIPv4(ip) {
			mask := net.IP(cfg.Address.Mask).String()
			params = fmt.Sprintf("%s inet %s netmask %s", name, ip.String(), mask)
		} else if isIPv6(ip) {
			params = fmt.Sprintf("%s inet6 %s/%d", name, ip.String(), ones)
		} else {
			dev.Close()
			return nil, errors.New("tun: invalid interface address")
		}
		out, err := exec.Command("ifconfig", strings.Split(params, " ")...).CombinedOutput()
		if err != nil {
			dev.Close()
			return nil, genErr(out, err)
		}
	}

	out, err := exec.Command("ifconfig", name, "up").CombinedOutput()
	if err != nil {
		dev.Close()
		return nil, genErr(out, err)
	}

	return dev, nil
}
