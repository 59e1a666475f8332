package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/net"
)

// SystemHost reads host facts through gopsutil
type SystemHost struct{}

// NewHost returns the host probe
func NewHost() Host { return SystemHost{} }

func (SystemHost) Facts(ctx context.Context) (HostFacts, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostFacts{}, fmt.Errorf("host info: %w", err)
	}
	return HostFacts{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelArch:      info.KernelArch,
		BootTime:        time.Unix(int64(info.BootTime), 0),
	}, nil
}

func (SystemHost) Disks(ctx context.Context) ([]Disk, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("disk partitions: %w", err)
	}
	out := make([]Disk, 0, len(partitions))
	for _, p := range partitions {
		d := Disk{Mountpoint: p.Mountpoint, FSType: p.Fstype}
		if usage, err := disk.UsageWithContext(ctx, p.Mountpoint); err == nil {
			d.Total = usage.Total
			d.Free = usage.Free
		}
		out = append(out, d)
	}
	return out, nil
}

func (SystemHost) Interfaces(ctx context.Context) ([]Interface, error) {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("network interfaces: %w", err)
	}
	out := make([]Interface, 0, len(ifaces))
	for _, ifc := range ifaces {
		n := Interface{Name: ifc.Name, MAC: ifc.HardwareAddr}
		for _, f := range ifc.Flags {
			if f == "up" {
				n.Up = true
			}
		}
		for _, a := range ifc.Addrs {
			n.Addrs = append(n.Addrs, a.Addr)
		}
		out = append(out, n)
	}
	return out, nil
}
