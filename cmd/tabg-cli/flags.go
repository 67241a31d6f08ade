package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type cliArgs struct {
	cfgPath    string
	overrides  []string
	serverArgs []string
}

// parseArgs 解析命令行；-server/-pipe-mode 折算成 -c 覆盖，位置参数原样追加给服务器。
func parseArgs(args []string, errOut io.Writer) (cliArgs, error) {
	fs := flag.NewFlagSet("tabg-cli", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: tabg-cli [flags] [-- server args...]")
		fs.PrintDefaults()
	}
	var (
		cfgPath   string
		overrides stringSlice
		server    string
		pipeMode  string
	)
	fs.StringVar(&cfgPath, "config", "", "Path to config.toml (default ~/.tabg-cli/config.toml)")
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	fs.StringVar(&server, "server", "", "Path to the game server executable")
	fs.StringVar(&pipeMode, "pipe-mode", "", "Pipe transport: named or anonymous")
	if err := fs.Parse(args); err != nil {
		return cliArgs{}, err
	}

	all := append([]string{}, overrides...)
	if s := strings.TrimSpace(server); s != "" {
		all = append(all, "server_path="+s)
	}
	if m := strings.TrimSpace(pipeMode); m != "" {
		switch strings.ToLower(m) {
		case "named", "anonymous":
			all = append(all, "pipe_mode="+strings.ToLower(m))
		default:
			return cliArgs{}, fmt.Errorf("unknown pipe mode: %s (use named or anonymous)", m)
		}
	}
	return cliArgs{
		cfgPath:    strings.TrimSpace(cfgPath),
		overrides:  all,
		serverArgs: fs.Args(),
	}, nil
}
