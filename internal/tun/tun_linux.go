//go:build linux

package tun

import (
	"fmt"
	"io"
	"net"
	"os/exec"
	"unsafe"

	"github.com/songgao/water"
	"golang.org/x/sys/unix"
)

// Open creates a TUN device via water, then sets its MTU through a raw
// SIOCSIFMTU ioctl (golang.org/x/sys/unix) and, if cfg.Address is set,
// assigns it by shelling out to `ip`. Grounded on the teacher's
// tun_linux.go water.Config{} shape.
func Open(cfg Config) (io.ReadWriteCloser, error) {
	wcfg := water.Config{DeviceType: water.TUN}
	wcfg.Name = cfg.Name
	wcfg.Persist = cfg.Persist

	dev, err := water.New(wcfg)
	if err != nil {
		return nil, fmt.Errorf("tun: %w", err)
	}
	name := dev.Name()

	if cfg.MTU > 0 {
		if err := setMTU(name, cfg.MTU); err != nil {
			dev.Close()
			return nil, err
		}
	}
	if cfg.Address != nil {
		if err := assignAddress(name, cfg.Address); err != nil {
			dev.Close()
			return nil, err
		}
	}
	if err := linkUp(name); err != nil {
		dev.Close()
		return nil, err
	}

	return dev, nil
}

type ifreqMTU struct {
	name [unix.IFNAMSIZ]byte
	mtu  int32
	_    [8]byte // pad to match struct ifreq's union size
}

// setMTU mirrors what songgao/water itself does internally on Linux for
// devices it didn't create with an explicit MTU: a SIOCSIFMTU ioctl over an
// ad hoc AF_INET socket.
func setMTU(name string, mtu int) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return fmt.Errorf("tun: socket: %w", err)
	}
	defer unix.Close(fd)

	var req ifreqMTU
	copy(req.name[:], name)
	req.mtu = int32(mtu)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.SIOCSIFMTU), uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return fmt.Errorf("tun: SIOCSIFMTU %s: %w", name, errno)
	}
	return nil
}

// assignAddress shells out to `ip addr add`, mirroring the teacher's
// tun_darwin.go preference for driving interface configuration through the
// OS's own network tool rather than netlink.
func assignAddress(name string, addr *net.IPNet) error {
	out, err := exec.Command("ip", "addr", "add", addr.String(), "dev", name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("tun: ip addr add %s dev %s: %w (%s)", addr, name, err, out)
	}
	return nil
}

func linkUp(name string) error {
	out, err := exec.Command("ip", "link", "set", "dev", name, "up").CombinedOutput()
	if err != nil {
		return fmt.Errorf("tun: ip link set dev %s up: %w (%s)", name, err, out)
	}
	return nil
}
