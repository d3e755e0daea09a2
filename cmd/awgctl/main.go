package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	cnc "github.com/TheAlpha16/awg-cnc"
	"github.com/TheAlpha16/awg-cnc/instrument/keysight"
	"github.com/TheAlpha16/awg-cnc/instrument/siglent"
)

var (
	cmdStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("35")).Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// Sender delivers one request and returns its status.
type Sender interface {
	Send(ctx context.Context, req cnc.Request) (cnc.Status, error)
	Close() error
}

func main() {
	transport := flag.String("transport", "valkey", "valkey or tcp")
	addr := flag.String("addr", "localhost:6379", "valkey or awgd address")
	queue := flag.String("queue", "awg:requests", "valkey request list")
	device := flag.String("instrument", "", "default instrument")
	timeout := flag.Duration("timeout", 60*time.Second, "reply timeout")
	flag.Parse()

	sender, err := connect(*transport, *addr, *queue)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer sender.Close()

	le := NewLineEditor()
	defer le.Close()

	fmt.Println(hintStyle.Render("commands: 'help', 'help <cmd>', 'use <instrument>', 'quit'"))
	for {
		line, err := le.GetLine(prompt(*device))
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintln(os.Stderr, err)
			}
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return
		case "use":
			if len(fields) == 2 {
				*device = fields[1]
			}
			continue
		case "help":
			printHelp(fields[1:])
			continue
		}

		req, err := parseLine(line, *device)
		if err != nil {
			fmt.Println(failedStyle.Render(err.Error()))
			continue
		}
		fmt.Println(cmdStyle.Render(fmt.Sprintf("-> %s on %s", req.Command, req.Instrument)))

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		status, err := sender.Send(ctx, req)
		cancel()
		if err != nil {
			fmt.Println(failedStyle.Render(err.Error()))
			continue
		}
		fmt.Println(render(status))
	}
}

func connect(transport, addr, queue string) (Sender, error) {
	switch transport {
	case "tcp":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return cnc.DialTCPClient(ctx, addr)
	case "valkey":
		client, err := cnc.NewValkeyClient(addr)
		if err != nil {
			return nil, err
		}
		return cnc.NewValkeyRequester(client, queue), nil
	}
	return nil, fmt.Errorf("unknown transport %q", transport)
}

func prompt(device string) string {
	if device == "" {
		return "awg> "
	}
	return fmt.Sprintf("awg %s> ", device)
}

func render(status cnc.Status) string {
	if status == cnc.StatusCompleted {
		return okStyle.Render(string(status))
	}
	return failedStyle.Render(string(status))
}

// printHelp lists the known commands, or the parameters of the named ones.
func printHelp(names []string) {
	descs := map[cnc.CommandName]cnc.Descriptor{}
	for _, d := range append(siglent.Commands(), keysight.Commands()...) {
		descs[d.Name] = d
	}

	if len(names) == 0 {
		var all []string
		for name, d := range descs {
			all = append(all, fmt.Sprintf("%-24s %s", name, hintStyle.Render(d.Family)))
		}
		sort.Strings(all)
		fmt.Println(strings.Join(all, "\n"))
		return
	}
	for _, n := range names {
		d, ok := descs[cnc.CommandName(n)]
		if !ok {
			fmt.Println(failedStyle.Render("unknown command " + n))
			continue
		}
		fmt.Printf("%s %s\n", cmdStyle.Render(n), d.Usage())
	}
}
