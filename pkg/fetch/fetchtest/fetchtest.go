// Package fetchtest provides origin stubs that net/http/httptest cannot
// express, such as responses with malformed headers.
package fetchtest

import (
	"bufio"
	"io"
	"net"
	"testing"
)

// RawServer answers every connection with the verbatim response after
// consuming the request head, then closes the connection. It returns the
// base URL of the stub, e.g. "http://127.0.0.1:54321".
func RawServer(tb testing.TB, response string) string {
	tb.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("fetchtest: listen: %v", err)
	}
	tb.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serve(conn, response)
		}
	}()

	return "http://" + ln.Addr().String()
}

func serve(conn net.Conn, response string) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}
	_, _ = io.WriteString(conn, response)
}
