//go:build !linux && !windows

package collector

// NewPlatformProbe reports ErrUnsupported outside Linux/X11 and Windows.
func NewPlatformProbe() (Probe, error) {
	return nil, ErrUnsupported
}
