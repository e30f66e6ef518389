// File: cmd/afb-client/main.go
// Command afb-client is a demo PROTO-WS client mirroring
// original_source/src/main-afb-client-demo.c's CLI surface
// (--human --raw --direct --break --echo uri [verb [json]]),
// using client.WebSocketClient as the local transport and
// internal/wsbridge + internal/stubws to speak PROTO-WS over it.
//
// Only the direct (PROTO-WS) path is implemented: this binder never
// grew the legacy wsj1 JSON-1 front end. There is no separate api
// argument: every call is sent with an empty api name, so the verb must
// name its api as "api/verb" (the server splits it); the dialed URI's
// path does not select an api.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/momentics/hioload-afb/client"
	"github.com/momentics/hioload-afb/internal/afbdebug"
	"github.com/momentics/hioload-afb/internal/protows"
	"github.com/momentics/hioload-afb/internal/stubws"
	"github.com/momentics/hioload-afb/internal/wsbridge"
)

const sessionID = "afb-client-demo"

type options struct {
	human  bool
	raw    bool
	direct bool
	brk    bool
	echo   bool
}

func usage(status int) {
	out := os.Stdout
	if status != 0 {
		out = os.Stderr
	}
	fmt.Fprintf(out, "usage: %s [-H] [-r] [-d] [-b] [-e] uri [verb [data]]\n", os.Args[0])
	fmt.Fprint(out, "\nallowed options\n"+
		"  --break, -b    Break connection just after the call has been emitted.\n"+
		"  --direct, -d   Direct api (the only mode this binder supports).\n"+
		"  --echo, -e     Echo inputs.\n"+
		"  --help, -h     Display this help.\n"+
		"  --human, -H    Display human readable JSON.\n"+
		"  --raw, -r      Raw output (default).\n")
	os.Exit(status)
}

func main() {
	opts, args := parseArgs(os.Args[1:])
	if len(args) != 1 && len(args) != 2 && len(args) != 3 {
		usage(1)
	}
	if !opts.human {
		opts.raw = true
	}

	logger := log.New(os.Stderr, "afb-client: ", log.LstdFlags)
	afbdebug.At("main", logger)

	// exit 2 marks a signal this demo does not otherwise handle
	// (spec.md's "unmonitored signal" exit class); SIGINT is consumed
	// by afbdebug's break/wait hooks, so only SIGTERM lands here.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		os.Exit(2)
	}()

	uri := args[0]
	wsc, err := client.NewWebSocketClient(client.ClientConfig{
		Addr:         uri,
		IOBufferSize: 65536,
		BatchSize:    16,
		NUMANode:     -1,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connection to %s failed: %v\n", uri, err)
		os.Exit(1)
	}

	tr := wsbridge.NewClientTransport(wsc)
	ep := protows.NewEndpoint(tr, true, false)
	ep.SetOnHangup(func() {
		fmt.Println("ON-HANGUP")
		os.Exit(0)
	})
	capi := stubws.NewClientAPI(ep)
	go tr.Serve(ep)

	afbdebug.At("ready", logger)

	d := &demo{opts: opts, capi: capi}

	if len(args) == 1 {
		d.stdinLoop()
		return
	}

	verb := args[1]
	object := "null"
	if len(args) == 3 {
		object = args[2]
	}
	d.call(verb, object)
	if opts.brk {
		os.Exit(0)
	}
	d.wait()
}

// parseArgs consumes leading flags the way the original's hand-rolled
// getopt-alike does, returning the remaining positional arguments.
func parseArgs(av []string) (options, []string) {
	var opts options
	i := 0
	for i < len(av) && strings.HasPrefix(av[i], "-") && av[i] != "-" {
		arg := av[i]
		if strings.HasPrefix(arg, "--") {
			switch arg {
			case "--human":
				opts.human = true
			case "--raw":
				opts.raw = true
			case "--direct":
				opts.direct = true
			case "--break":
				opts.brk = true
			case "--echo":
				opts.echo = true
			case "--help":
				usage(0)
			default:
				usage(1)
			}
		} else {
			for _, c := range arg[1:] {
				switch c {
				case 'H':
					opts.human = true
				case 'r':
					opts.raw = true
				case 'd':
					opts.direct = true
				case 'b':
					opts.brk = true
				case 'e':
					opts.echo = true
				case 'h':
					usage(0)
				default:
					usage(1)
				}
			}
		}
		i++
	}
	return opts, av[i:]
}

// demo tracks the in-flight call count so the single-shot (non-stdin)
// invocation can wait for its reply before exiting, matching the
// original's exonrep/callcount pair.
type demo struct {
	opts options
	capi *stubws.ClientAPI
	wg   sync.WaitGroup
}

func (d *demo) wait() {
	d.wg.Wait()
}

func (d *demo) call(verb, object string) {
	if object == "" {
		object = "null"
	}
	if d.opts.echo {
		fmt.Printf("SEND-CALL: %s %s\n", verb, object)
	}
	d.wg.Add(1)
	err := d.capi.Call("", verb, sessionID, object, nil, func(result string, cerr error) {
		d.onReply(verb, result, cerr)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "calling %s(%s) failed: %v\n", verb, object, err)
		d.wg.Done()
	}
}

func (d *demo) onReply(verb, result string, cerr error) {
	status := "success"
	info := ""
	if cerr != nil {
		status = cerr.Error()
		if idx := strings.Index(status, ": "); idx >= 0 {
			info = status[idx+2:]
			status = status[:idx]
		}
	}
	if d.opts.raw {
		fmt.Printf(`{"jtype":"afb-reply","request":{"status":%q`, status)
		if info != "" {
			fmt.Printf(`,"info":%q`, info)
		}
		fmt.Print("}")
		if cerr == nil && result != "" {
			fmt.Printf(`,"response":%s`, result)
		}
		fmt.Println("}")
	}
	if d.opts.human {
		fmt.Printf("ON-REPLY %s: %s %s\n%s\n", verb, status, info, result)
	}
	d.wg.Done()
}

// stdinLoop reads "verb json" lines from stdin until EOF, the direct-mode
// counterpart of the original's io_event_callback.
func (d *demo) stdinLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 16384), 16384)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		verb := fields[0]
		object := "null"
		if len(fields) == 2 {
			object = strings.TrimSpace(fields[1])
		}
		d.call(verb, object)
		if d.opts.brk {
			os.Exit(0)
		}
	}
	d.wait()
}
