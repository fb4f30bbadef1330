package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/bollu/elfsage/patchscript"
)

func validateCommand(args []string) error {
	flags := flag.NewFlagSet("validate", flag.ContinueOnError)

	err := flags.Parse(args)
	if err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return fmt.Errorf("USAGE: elfsage validate <file>")
	}

	file, err := loadFile(flags.Arg(0))
	if err != nil {
		return err
	}

	violations := file.Validate()
	for _, violation := range violations {
		fmt.Println(violation)
	}

	if len(violations) > 0 {
		return fmt.Errorf("%d validation failure(s)", len(violations))
	}

	return nil
}

func patchCommand(args []string) error {
	flags := flag.NewFlagSet("patch", flag.ContinueOnError)
	out := flags.String("out", "", "output path for the patched image")
	script := flags.String("script", "", "yaml patch script to apply")
	table := flags.String(
		"table",
		"",
		"table to edit (program | section | symbol)")
	section := flags.String(
		"section",
		"",
		"symbol table section name (symbol edits only)")
	index := flags.Int("index", 0, "table entry index to edit")
	field := flags.String("field", "", "entry field name to replace")
	value := flags.String("value", "", "new field value (decimal or 0x-hex)")

	err := flags.Parse(args)
	if err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return fmt.Errorf("USAGE: elfsage patch [flags] <file>")
	}

	if *out == "" {
		return fmt.Errorf("missing -out path")
	}

	content, err := os.ReadFile(flags.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", flags.Arg(0), err)
	}

	var edits *patchscript.Script
	if *script != "" {
		scriptContent, err := os.ReadFile(*script)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", *script, err)
		}

		edits, err = patchscript.Parse(scriptContent)
		if err != nil {
			return err
		}
	} else {
		switch *table {
		case patchscript.TableProgram,
			patchscript.TableSection,
			patchscript.TableSymbol:
		default:
			return fmt.Errorf("unknown -table: %q", *table)
		}

		parsed, err := strconv.ParseUint(*value, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid -value %q: %w", *value, err)
		}

		edits = &patchscript.Script{
			Patches: []patchscript.Edit{
				{
					Table:   *table,
					Section: *section,
					Index:   *index,
					Field:   *field,
					Value:   patchscript.Value(parsed),
				},
			},
		}
	}

	patched, err := edits.Apply(content)
	if err != nil {
		return err
	}

	err = os.WriteFile(*out, patched, 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}

	return nil
}
