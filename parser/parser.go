package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/shlex"
)

var (
	ErrInvalidUsage      = errors.New("invalid usage")
	ErrMissingCredential = errors.New("MCP_AUTH environment variable is not set")
)

type Arguments struct {
	// Auth is the bearer token sent to every server.
	Auth        string
	ConfigFiles []string
	NoDefaults  bool
	Concurrency int
	Timeout     time.Duration
	LogLevel    slog.Level
	MetricsFile string
	Output      string

	// Actions
	Help    bool
	Version bool
}

type Parser struct {
	args Arguments
}

func (p *Parser) Parse(args []string) error {
	if err := p.applyFromEnv(); err != nil {
		return fmt.Errorf("apply from env: %w", err)
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-h", "--help":
			p.args.Help = true
			return nil
		case "-v", "--version":
			p.args.Version = true
			return nil
		case "-n", "--no-defaults":
			p.args.NoDefaults = true
		case "-f", "--file", "-c", "--concurrency", "-T", "--timeout", "-l", "--log-level",
			"-m", "--metrics-file", "-o", "--output":
			if len(args) < i+2 {
				return ErrInvalidUsage
			}
			value := args[i+1]
			switch arg {
			case "-f", "--file":
				p.args.ConfigFiles = append(p.args.ConfigFiles, value)
			case "-c", "--concurrency":
				n, err := parseConcurrency(value)
				if err != nil {
					return err
				}
				p.args.Concurrency = n
			case "-T", "--timeout":
				d, err := parseTimeout(value)
				if err != nil {
					return err
				}
				p.args.Timeout = d
			case "-l", "--log-level":
				if err := p.args.LogLevel.UnmarshalText([]byte(value)); err != nil {
					return fmt.Errorf("parse log level: %w", err)
				}
			case "-m", "--metrics-file":
				p.args.MetricsFile = value
			case "-o", "--output":
				p.args.Output = value
			}
			i++
		default:
			return fmt.Errorf("%w: unknown argument %q", ErrInvalidUsage, arg)
		}
	}

	if err := p.checkArgs(); err != nil {
		return err
	}
	return nil
}

func (p *Parser) Arguments() Arguments {
	return p.args
}

func (p *Parser) applyFromEnv() error {
	p.args.Auth = os.Getenv("MCP_AUTH")
	if v := os.Getenv("MCPSCAN_LOG_LEVEL"); v != "" {
		if err := p.args.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("parse log level: %w", err)
		}
	}
	if v := os.Getenv("MCPSCAN_CONCURRENCY"); v != "" {
		n, err := parseConcurrency(v)
		if err != nil {
			return err
		}
		p.args.Concurrency = n
	}
	if v := os.Getenv("MCPSCAN_TIMEOUT"); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return err
		}
		p.args.Timeout = d
	}
	if v := os.Getenv("MCPSCAN_CONFIG_PATHS"); v != "" {
		paths, err := shlex.Split(v)
		if err != nil {
			return fmt.Errorf("split config paths: %w", err)
		}
		p.args.ConfigFiles = append(p.args.ConfigFiles, paths...)
	}
	return nil
}

// checkArgs runs after parsing so -h and -v work without a credential.
func (p Parser) checkArgs() error {
	if p.args.Auth == "" {
		return ErrMissingCredential
	}
	return nil
}

func parseConcurrency(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("parse concurrency %q: must be a positive integer", v)
	}
	return n, nil
}

func parseTimeout(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse timeout %q: must be positive", v)
	}
	return d, nil
}
