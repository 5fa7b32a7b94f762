package main

import (
	"errors"
	"flag"
	"fmt"
)

// commonFlags are accepted by every command and override config values.
type commonFlags struct {
	config    string
	driver    string
	path      string
	logLevel  string
	redisAddr string
}

func (c *cli) newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet("credctl "+name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)

	common := &commonFlags{}
	fs.StringVar(&common.config, "config", "", "config file (yaml, json or toml)")
	fs.StringVar(&common.driver, "store", "", "store driver: file, redis, postgres, miniredis or memory")
	fs.StringVar(&common.path, "store-path", "", "document path for the file store")
	fs.StringVar(&common.redisAddr, "redis-addr", "", "redis address for the redis store")
	fs.StringVar(&common.logLevel, "log-level", "", "log level")
	return fs, common
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errUsage
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return nil
}

// load resolves settings for one command invocation.
func (f *commonFlags) load() (settings, error) {
	v := newViper()
	overrides := map[string]string{
		"store.driver":     f.driver,
		"store.path":       f.path,
		"store.redis_addr": f.redisAddr,
		"log.level":        f.logLevel,
	}
	if err := readConfig(v, f.config); err != nil {
		return settings{}, err
	}
	for key, value := range overrides {
		if value != "" {
			v.Set(key, value)
		}
	}
	return loadSettings(v)
}
