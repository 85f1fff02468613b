/*
 * MIT License
 *
 * Copyright (c) 2026 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

//go:build windows

package supervisor

import (
	"os"

	"github.com/shirou/gopsutil/process"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

type winServiceManager struct {
	m *mgr.Mgr
}

func openServiceManager() (ServiceManager, error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, err
	}
	return &winServiceManager{m: m}, nil
}

func (w *winServiceManager) open(name string) (*mgr.Service, error) {
	s, err := w.m.OpenService(name)
	if err != nil {
		return nil, ErrServiceUnknown
	}
	return s, nil
}

func (w *winServiceManager) Query(name string) (ServiceState, error) {
	s, err := w.open(name)
	if err != nil {
		return ServiceStateUnknown, err
	}
	defer s.Close()

	st, err := s.Query()
	if err != nil {
		return ServiceStateUnknown, err
	}
	switch st.State {
	case svc.Stopped:
		return ServiceStateStopped, nil
	case svc.Running:
		return ServiceStateRunning, nil
	default:
		return ServiceStateTransient, nil
	}
}

func (w *winServiceManager) Start(name string) error {
	s, err := w.open(name)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Start()
}

func (w *winServiceManager) Kill(name string) error {
	s, err := w.open(name)
	if err != nil {
		return err
	}
	defer s.Close()
	_, err = s.Control(svc.Stop)
	return err
}

func (w *winServiceManager) PID(name string) (int32, error) {
	s, err := w.open(name)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	st, err := s.Query()
	if err != nil {
		return 0, err
	}
	return int32(st.ProcessId), nil
}

func (w *winServiceManager) Close() error {
	return w.m.Disconnect()
}

func interruptSignal() os.Signal {
	return os.Interrupt
}

func killPID(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
