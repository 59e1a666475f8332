//go:build windows

package probe

import (
	"context"
	"fmt"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// OLEWMI queries the local WMI service through SWbemLocator
type OLEWMI struct{}

// NewWMI returns the platform WMI probe
func NewWMI() WMI { return OLEWMI{} }

// Query runs wql in namespace and reads props from every returned object
func (OLEWMI) Query(ctx context.Context, namespace, wql string, props []string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// COM apartments are per thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		// S_FALSE means already initialized on this thread
		oleErr, ok := err.(*ole.OleError)
		if !ok || oleErr.Code() != 1 {
			return nil, fmt.Errorf("COM initialization failed: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return nil, fmt.Errorf("failed to create WMI locator: %w", err)
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("failed to query WMI interface: %w", err)
	}
	defer locator.Release()

	serviceRaw, err := oleutil.CallMethod(locator, "ConnectServer", ".", namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WMI namespace %s: %w", namespace, err)
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	resultRaw, err := oleutil.CallMethod(service, "ExecQuery", wql)
	if err != nil {
		return nil, fmt.Errorf("WMI query failed: %w", err)
	}
	result := resultRaw.ToIDispatch()
	defer result.Release()

	countVar, err := oleutil.GetProperty(result, "Count")
	if err != nil {
		return nil, fmt.Errorf("failed to get result count: %w", err)
	}
	count := int(countVar.Val)

	records := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		itemRaw, err := oleutil.CallMethod(result, "ItemIndex", i)
		if err != nil {
			continue
		}
		item := itemRaw.ToIDispatch()

		rec := make(Record, len(props))
		for _, p := range props {
			v, err := oleutil.GetProperty(item, p)
			if err != nil {
				continue
			}
			rec[p] = v.Value()
			_ = v.Clear()
		}
		item.Release()
		records = append(records, rec)
	}

	return records, nil
}
