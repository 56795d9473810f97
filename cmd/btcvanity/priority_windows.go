//go:build windows

package main

import (
	"syscall"
	"unsafe"
)

// Windows priority classes.
const (
	highPriorityClass        = 0x00000080
	aboveNormalPriorityClass = 0x00008000

	// processPowerThrottling is the ProcessInformationClass value for
	// PROCESS_POWER_THROTTLING_STATE.
	processPowerThrottling = 4

	powerThrottlingExecutionSpeed = 0x1
)

var (
	kernel32                  = syscall.NewLazyDLL("kernel32.dll")
	procGetCurrentProcess     = kernel32.NewProc("GetCurrentProcess")
	procSetPriorityClass      = kernel32.NewProc("SetPriorityClass")
	procSetProcessInformation = kernel32.NewProc("SetProcessInformation")
)

// powerThrottlingState mirrors PROCESS_POWER_THROTTLING_STATE.
type powerThrottlingState struct {
	Version     uint32
	ControlMask uint32
	StateMask   uint32
}

func setPriorityClass(class uintptr) error {
	handle, _, _ := procGetCurrentProcess.Call()

	ret, _, err := procSetPriorityClass.Call(handle, class)
	if ret == 0 {
		return err
	}
	return nil
}

// disablePowerThrottling opts out of Efficiency Mode. Available on Windows
// 10 1709+ and Windows 11.
func disablePowerThrottling() error {
	if err := procSetProcessInformation.Find(); err != nil {
		return err
	}

	handle, _, _ := procGetCurrentProcess.Call()

	state := powerThrottlingState{
		Version:     1,
		ControlMask: powerThrottlingExecutionSpeed,
	}

	ret, _, err := procSetProcessInformation.Call(
		handle,
		processPowerThrottling,
		uintptr(unsafe.Pointer(&state)),
		unsafe.Sizeof(state),
	)
	if ret == 0 {
		return err
	}
	return nil
}

// raisePriority gives the search more CPU time than normal processes,
// falling back to above normal if high priority is refused.
func raisePriority() error {
	if err := setPriorityClass(highPriorityClass); err != nil {
		if err := setPriorityClass(aboveNormalPriorityClass); err != nil {
			return err
		}
	}

	// Best effort, older releases lack the call.
	_ = disablePowerThrottling()

	return nil
}
