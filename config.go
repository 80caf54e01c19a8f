package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/stealthrocket/cloak/internal/cloak"
	"gopkg.in/yaml.v3"
)

const configUsage = `
Usage:	cloak config [options]

   Print the cloak configuration. Values absent from the configuration file
   are shown with their defaults, and environment overrides (CLOAK_LOG_LEVEL,
   CLOAK_LOG_FORMAT, CLOAK_ENGINE) are applied in the json and yaml formats.

Options:
   -c, --config path    Path to the cloak configuration file (overrides CLOAKCONFIG)
       --edit           Open $EDITOR to edit the configuration
   -h, --help           Show usage information
   -o, --output format  Output format, one of: text, json, yaml
`

func config(ctx context.Context, args []string) error {
	var (
		edit   bool
		output = outputFormat("text")
	)

	flagSet := newFlagSet("cloak config", configUsage)
	boolVar(flagSet, &edit, "edit")
	customVar(flagSet, &output, "o", "output")

	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return usageError("cloak config: unexpected arguments: %q", args)
	}
	setConfigPath()

	if edit {
		if err := editConfig(); err != nil {
			return err
		}
	}

	switch output {
	case "json":
		c, err := cloak.LoadConfig()
		if err != nil {
			return err
		}
		e := json.NewEncoder(stdout)
		e.SetEscapeHTML(false)
		e.SetIndent("", "  ")
		return e.Encode(c)
	case "yaml":
		c, err := cloak.LoadConfig()
		if err != nil {
			return err
		}
		e := yaml.NewEncoder(stdout)
		e.SetIndent(2)
		if err := e.Encode(c); err != nil {
			return err
		}
		return e.Close()
	default:
		r, _, err := cloak.OpenConfig()
		if err != nil {
			return err
		}
		defer r.Close()
		_, err = io.Copy(stdout, r)
		return err
	}
}

func editConfig() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return errors.New(`$EDITOR is not set`)
	}
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	r, path, err := cloak.OpenConfig()
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return err
	}
	tmp, err := createTempFile(path, r)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	p, err := os.StartProcess(shell, []string{shell, "-c", editor + " " + tmp}, &os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	})
	if err != nil {
		return err
	}
	if _, err := p.Wait(); err != nil {
		return err
	}

	f, err := os.Open(tmp)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := cloak.ReadConfig(f); err != nil {
		return fmt.Errorf("not applying configuration updates because the file is invalid: %w", err)
	}
	return os.Rename(tmp, path)
}

func createTempFile(path string, r io.Reader) (string, error) {
	dir, file := filepath.Split(path)
	w, err := os.CreateTemp(dir, "."+file+".*")
	if err != nil {
		return "", err
	}
	defer w.Close()
	_, err = io.Copy(w, r)
	return w.Name(), err
}
