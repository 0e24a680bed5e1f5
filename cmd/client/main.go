// cmd/client is a minimal RESP CLI for talking to a shardkv server —
// flag-based rather than Cobra, since CLI/config tooling is an explicit
// out-of-scope collaborator (spec.md §1/§6); this is a thin example
// client, not a designed component.
//
// Usage:
//
//	shardkv-cli --addr localhost:6379 SET mykey "hello world"
//	shardkv-cli --addr localhost:6379 GET mykey
//	shardkv-cli --addr localhost:6379 MCOUNTER http.requests host:web01 1
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", "localhost:6379", "shardkv server RESP address")
	timeout := flag.Duration("timeout", 5*time.Second, "connection/request timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: shardkv-cli [--addr host:port] COMMAND [args...]")
		os.Exit(1)
	}

	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(*timeout))

	if _, err := conn.Write(encodeMultibulk(args)); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}

	reply, err := readReply(bufio.NewReader(conn))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read reply: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(reply)
}

// encodeMultibulk frames args as a RESP2 command array — the same
// request shape internal/resp.Reader.ReadCommand decodes server-side.
func encodeMultibulk(args []string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d\r\n", len(args))
	for _, a := range args {
		fmt.Fprintf(&b, "$%d\r\n%s\r\n", len(a), a)
	}
	return []byte(b.String())
}

// readReply decodes exactly one RESP2 reply frame into a display string.
// It is deliberately independent of internal/resp.Reader (that type
// decodes request arrays, not arbitrary reply frames) and only handles
// the five frame kinds internal/resp.Encode ever emits.
func readReply(r *bufio.Reader) (string, error) {
	line, err := readLine(r)
	if err != nil {
		return "", err
	}
	if len(line) == 0 {
		return "", fmt.Errorf("empty reply")
	}
	switch line[0] {
	case '+':
		return line[1:], nil
	case '-':
		return "(error) " + line[1:], nil
	case ':':
		return line[1:], nil
	case '$':
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			return "", fmt.Errorf("invalid bulk length %q", line[1:])
		}
		if n < 0 {
			return "(nil)", nil
		}
		buf := make([]byte, n+2)
		if _, err := readFull(r, buf); err != nil {
			return "", err
		}
		return string(buf[:n]), nil
	case '*':
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			return "", fmt.Errorf("invalid array length %q", line[1:])
		}
		if n < 0 {
			return "(nil)", nil
		}
		items := make([]string, n)
		for i := 0; i < n; i++ {
			items[i], err = readReply(r)
			if err != nil {
				return "", err
			}
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	default:
		return "", fmt.Errorf("unrecognized reply frame %q", line)
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
