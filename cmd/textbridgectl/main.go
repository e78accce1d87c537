// textbridgectl is the control and test CLI for textbridged.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"textbridge/internal/config"
	"textbridge/internal/ipc"
)

var (
	configPath = flag.String("config", "", "path to config file")
	socketPath = flag.String("socket", "", "override the socket path")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch cmd {
	case "ping":
		err = cmdPing()
	case "run":
		err = cmdRun(args)
	case "config":
		err = cmdConfig(args)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `textbridgectl - Control utility for textbridged

Usage: textbridgectl [options] <command> [args]

Commands:
  ping                 Check that the daemon is serving
  run [script]         Act as an engine and play a command script
                       (stdin when no file is given)
  config show          Print the effective configuration
  config init [path]   Write the default configuration
  help                 Show this help message

Options:
  -config <path>  Path to config file (default: `+config.Path()+`)
  -socket <path>  Override the socket path`)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if *socketPath != "" {
		cfg.Transport.SocketPath = *socketPath
	}
	return cfg, nil
}

// connect dials the daemon and serves the connection until ctx is done.
func connect(ctx context.Context) (*ipc.Conn, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	conn, err := ipc.Dial(ctx, cfg.Transport.SocketPath, nil)
	if err != nil {
		return nil, err
	}
	go conn.Serve(ctx)
	return conn, nil
}

func cmdPing() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	start := time.Now()
	if err := conn.Ping(ctx); err != nil {
		return err
	}
	fmt.Printf("pong in %s\n", time.Since(start).Round(time.Microsecond))
	return nil
}

func cmdRun(args []string) error {
	var script io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		script = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return NewRunner(conn, os.Stdout).Run(ctx, script)
}

func cmdConfig(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: textbridgectl config <show|init> [path]")
	}
	switch args[0] {
	case "show":
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := cfg.Encode()
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil

	case "init":
		path := config.Path()
		if len(args) > 1 {
			path = args[1]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Save(config.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil

	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}
