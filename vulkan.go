package dylink

import (
	"go.uber.org/zap"

	"github.com/wippyai/dylink/errors"
)

const (
	vkGetInstanceProcAddr = "vkGetInstanceProcAddr"
	vkGetDeviceProcAddr   = "vkGetDeviceProcAddr"
)

// resolveVulkan walks the Vulkan loader dispatch chain: global commands first,
// then device-level dispatch for every tracked device, then instance-level
// dispatch for every tracked instance, then the loader's own exports.
func (l *Loader) resolveVulkan(symbol string) (uintptr, error) {
	libName, lib, err := l.firstLibrary(l.vulkanLib, l.sys.vulkanLibraries())
	if err != nil {
		return 0, errors.New(errors.PhaseResolve, errors.KindNotFound).
			Symbol(symbol).
			Detail("vulkan loader unavailable").
			Cause(err).
			Build()
	}

	gipa, err := l.sys.symbol(lib, vkGetInstanceProcAddr)
	if err != nil || gipa == 0 {
		return 0, errors.New(errors.PhaseResolve, errors.KindNotFound).
			Symbol(symbol).
			Detail("%s does not export %s", libName, vkGetInstanceProcAddr).
			Cause(err).
			Build()
	}
	if symbol == vkGetInstanceProcAddr {
		return gipa, nil
	}

	if addr := l.sys.getProc(gipa, 0, symbol); addr != 0 {
		return addr, nil
	}

	if devices := l.devices.Snapshot(); len(devices) > 0 {
		if gdpa := l.deviceProcAddr(lib, gipa); gdpa != 0 {
			for _, dev := range devices {
				if addr := l.sys.getProc(gdpa, dev, symbol); addr != 0 {
					Logger().Debug("resolved device-level command",
						zap.String("symbol", symbol),
						zap.Uintptr("device", dev))
					return addr, nil
				}
			}
		}
	}

	for _, inst := range l.instances.Snapshot() {
		if addr := l.sys.getProc(gipa, inst, symbol); addr != 0 {
			Logger().Debug("resolved instance-level command",
				zap.String("symbol", symbol),
				zap.Uintptr("instance", inst))
			return addr, nil
		}
	}

	if addr, err := l.sys.symbol(lib, symbol); err == nil && addr != 0 {
		return addr, nil
	}

	return 0, errors.New(errors.PhaseResolve, errors.KindNotFound).
		Symbol(symbol).
		Detail("not exported by %s for any of %d instance(s) and %d device(s)",
			libName, l.instances.Len(), l.devices.Len()).
		Build()
}

func (l *Loader) deviceProcAddr(lib, gipa uintptr) uintptr {
	if addr, err := l.sys.symbol(lib, vkGetDeviceProcAddr); err == nil && addr != 0 {
		return addr
	}
	for _, inst := range l.instances.Snapshot() {
		if addr := l.sys.getProc(gipa, inst, vkGetDeviceProcAddr); addr != 0 {
			return addr
		}
	}
	return 0
}
