// Package netutil picks listen addresses for the API server and the
// browser's debugging port.
package netutil

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Selection is the outcome of SelectBindAddr.
type Selection struct {
	Addr string
	// Busy lists the addresses tried before Addr, in order.
	Busy []string
}

// Fallback reports whether Addr is not the preferred address.
func (s Selection) Fallback() bool { return len(s.Busy) > 0 }

// SelectBindAddr returns preferred when it can be listened on. Otherwise, and
// only with autoFallback, it returns the first free candidate. An empty
// preferred goes straight to the candidates.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (Selection, error) {
	var sel Selection
	try := func(addr string) (bool, error) {
		ok, err := IsAddrAvailable(addr)
		if err != nil {
			return false, err
		}
		if !ok {
			sel.Busy = append(sel.Busy, addr)
		}
		return ok, nil
	}

	if preferred != "" {
		ok, err := try(preferred)
		if err != nil {
			return Selection{}, err
		}
		if ok {
			sel.Addr = preferred
			return sel, nil
		}
		if !autoFallback {
			return Selection{}, fmt.Errorf("bind address %s is in use and port fallback is disabled", preferred)
		}
	}

	for _, addr := range candidates {
		if addr == preferred {
			continue
		}
		ok, err := try(addr)
		if err != nil {
			return Selection{}, err
		}
		if ok {
			sel.Addr = addr
			return sel, nil
		}
	}
	if len(sel.Busy) == 0 {
		return Selection{}, errors.New("no bind address configured")
	}
	return Selection{}, fmt.Errorf("no available bind address (in use: %s)", strings.Join(sel.Busy, ", "))
}

// IsAddrAvailable reports whether addr can be listened on. An address that is
// already in use is not an error; malformed or forbidden addresses are.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return false, nil
		}
		return false, fmt.Errorf("probe %s: %w", addr, err)
	}
	if err := ln.Close(); err != nil {
		return false, err
	}
	return true, nil
}

// FreePort asks the kernel for an unused TCP port on host. The port is free
// when FreePort returns but nothing reserves it afterwards.
func FreePort(host string) (int, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
