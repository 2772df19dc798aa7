//go:build linux

package collector

import (
	"context"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xproto"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/xerrors"
)

// x11Probe reads EWMH properties from the root window and idle time from
// the MIT-SCREEN-SAVER extension.
type x11Probe struct {
	mu   sync.Mutex
	conn *xgb.Conn
	root xproto.Window

	activeWindow xproto.Atom
	wmName       xproto.Atom
	wmPID        xproto.Atom
	utf8String   xproto.Atom
}

// NewPlatformProbe connects to the X server named by $DISPLAY.
func NewPlatformProbe() (Probe, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, xerrors.Errorf("connect to X server: %w", err)
	}
	if err := screensaver.Init(conn); err != nil {
		conn.Close()
		return nil, xerrors.Errorf("init screensaver extension: %w", err)
	}

	p := &x11Probe{
		conn: conn,
		root: xproto.Setup(conn).DefaultScreen(conn).Root,
	}
	for name, dst := range map[string]*xproto.Atom{
		"_NET_ACTIVE_WINDOW": &p.activeWindow,
		"_NET_WM_NAME":       &p.wmName,
		"_NET_WM_PID":        &p.wmPID,
		"UTF8_STRING":        &p.utf8String,
	} {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, xerrors.Errorf("intern atom %s: %w", name, err)
		}
		*dst = reply.Atom
	}
	return p, nil
}

func (p *x11Probe) ActiveWindow(ctx context.Context) (Window, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reply, err := xproto.GetProperty(p.conn, false, p.root, p.activeWindow, xproto.AtomWindow, 0, 1).Reply()
	if err != nil {
		return Window{}, xerrors.Errorf("read _NET_ACTIVE_WINDOW: %w", err)
	}
	if len(reply.Value) < 4 {
		return Window{}, xerrors.New("no active window")
	}
	win := xproto.Window(xgb.Get32(reply.Value))

	title, err := p.title(win)
	if err != nil {
		return Window{}, err
	}

	pidReply, err := xproto.GetProperty(p.conn, false, win, p.wmPID, xproto.AtomCardinal, 0, 1).Reply()
	if err != nil {
		return Window{}, xerrors.Errorf("read _NET_WM_PID: %w", err)
	}
	if len(pidReply.Value) < 4 {
		return Window{}, xerrors.Errorf("window %d has no _NET_WM_PID", win)
	}
	pid := int32(xgb.Get32(pidReply.Value))

	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return Window{}, xerrors.Errorf("look up process %d: %w", pid, err)
	}
	exe, err := proc.ExeWithContext(ctx)
	if err != nil {
		return Window{}, xerrors.Errorf("resolve executable of %d: %w", pid, err)
	}
	return Window{Title: title, Executable: exe}, nil
}

func (p *x11Probe) title(win xproto.Window) (string, error) {
	reply, err := xproto.GetProperty(p.conn, false, win, p.wmName, p.utf8String, 0, 1<<16).Reply()
	if err != nil {
		return "", xerrors.Errorf("read _NET_WM_NAME: %w", err)
	}
	if len(reply.Value) > 0 {
		return string(reply.Value), nil
	}
	// Fall back to the ICCCM name for clients without EWMH support.
	reply, err = xproto.GetProperty(p.conn, false, win, xproto.AtomWmName, xproto.GetPropertyTypeAny, 0, 1<<16).Reply()
	if err != nil {
		return "", xerrors.Errorf("read WM_NAME: %w", err)
	}
	return string(reply.Value), nil
}

func (p *x11Probe) IdleTime(context.Context) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := screensaver.QueryInfo(p.conn, xproto.Drawable(p.root)).Reply()
	if err != nil {
		return 0, xerrors.Errorf("query screensaver info: %w", err)
	}
	return time.Duration(info.MsSinceUserInput) * time.Millisecond, nil
}

func (p *x11Probe) Close() error {
	p.conn.Close()
	return nil
}
