//go:build windows

package probe

import (
	"context"
	"fmt"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// WindowsServices reads the service control manager
type WindowsServices struct{}

// NewServices returns the platform service probe
func NewServices() Services { return WindowsServices{} }

// List opens every service whose name satisfies match and reads its config and status
func (WindowsServices) List(ctx context.Context, match func(name string) bool) ([]Service, error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect to service manager: %w", err)
	}
	defer m.Disconnect()

	names, err := m.ListServices()
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	var out []Service
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if match != nil && !match(name) {
			continue
		}
		s, err := m.OpenService(name)
		if err != nil {
			continue
		}
		svcInfo := Service{Name: name}
		if cfg, err := s.Config(); err == nil {
			svcInfo.DisplayName = cfg.DisplayName
			svcInfo.StartMode = startMode(cfg.StartType, cfg.DelayedAutoStart)
			svcInfo.Account = cfg.ServiceStartName
			svcInfo.BinaryPath = cfg.BinaryPathName
		}
		if st, err := s.Query(); err == nil {
			svcInfo.State = stateName(st.State)
			svcInfo.PID = int64(st.ProcessId)
		}
		s.Close()
		out = append(out, svcInfo)
	}
	return out, nil
}

func startMode(t uint32, delayed bool) string {
	switch t {
	case mgr.StartAutomatic:
		if delayed {
			return "Auto (Delayed)"
		}
		return "Auto"
	case mgr.StartManual:
		return "Manual"
	case mgr.StartDisabled:
		return "Disabled"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

func stateName(s svc.State) string {
	switch s {
	case svc.Stopped:
		return "Stopped"
	case svc.StartPending:
		return "Start Pending"
	case svc.StopPending:
		return "Stop Pending"
	case svc.Running:
		return "Running"
	case svc.ContinuePending:
		return "Continue Pending"
	case svc.PausePending:
		return "Pause Pending"
	case svc.Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}
