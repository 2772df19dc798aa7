//go:build windows

package collector

import (
	"context"
	"time"
	"unsafe"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/windows"
	"golang.org/x/xerrors"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetWindowTextLength = user32.NewProc("GetWindowTextLengthW")
	procGetLastInputInfo    = user32.NewProc("GetLastInputInfo")
)

// lastInputInfo mirrors LASTINPUTINFO.
type lastInputInfo struct {
	size uint32
	time uint32
}

// win32Probe asks user32 for the foreground window and the last input tick.
type win32Probe struct{}

// NewPlatformProbe checks that the user32 entry points are available.
func NewPlatformProbe() (Probe, error) {
	for _, proc := range []*windows.LazyProc{procGetWindowTextW, procGetWindowTextLength, procGetLastInputInfo} {
		if err := proc.Find(); err != nil {
			return nil, xerrors.Errorf("load %s: %w", proc.Name, err)
		}
	}
	return win32Probe{}, nil
}

func (win32Probe) ActiveWindow(ctx context.Context) (Window, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return Window{}, xerrors.New("no foreground window")
	}

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return Window{}, xerrors.Errorf("owner of window %#x: %w", hwnd, err)
	}
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Window{}, xerrors.Errorf("look up process %d: %w", pid, err)
	}
	exe, err := proc.ExeWithContext(ctx)
	if err != nil {
		return Window{}, xerrors.Errorf("resolve executable of %d: %w", pid, err)
	}
	return Window{Title: windowText(hwnd), Executable: exe}, nil
}

// windowText returns the title of hwnd, or "" for untitled windows.
func windowText(hwnd windows.HWND) string {
	n, _, _ := procGetWindowTextLength.Call(uintptr(hwnd))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	copied, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:copied])
}

func (win32Probe) IdleTime(context.Context) (time.Duration, error) {
	info := lastInputInfo{size: uint32(unsafe.Sizeof(lastInputInfo{}))}
	ok, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ok == 0 {
		return 0, xerrors.Errorf("GetLastInputInfo: %w", err)
	}
	return idleSince(uint32(windows.GetTickCount64()), info.time), nil
}

// idleSince is the time between the last input tick and now. Both are
// 32-bit millisecond tick counts, which wrap after about 49.7 days.
func idleSince(now, last uint32) time.Duration {
	return time.Duration(now-last) * time.Millisecond
}
