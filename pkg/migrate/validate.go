package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Validate checks every .sql file in fsys: the file name carries a unique
// version, both goose sections exist, and statement blocks are balanced.
// All problems are reported together.
func Validate(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var problems error
	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := migrationName.FindStringSubmatch(name)
		if m == nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if _, err := ParseVersion(m[1]); err != nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if prev, ok := seen[m[1]]; ok {
			problems = multierr.Append(problems, fmt.Errorf("%s: version %s already used by %s", name, m[1], prev))
			continue
		}
		seen[m[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: %w", name, err))
			continue
		}
		problems = multierr.Append(problems, checkAnnotations(name, body))
	}
	return problems
}

func checkAnnotations(name string, body []byte) error {
	var (
		up, down bool
		open     int
		problems error
	)
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for line := 1; scanner.Scan(); line++ {
		switch strings.TrimSpace(scanner.Text()) {
		case "-- +goose Up":
			up = true
		case "-- +goose Down":
			if !up {
				problems = multierr.Append(problems, fmt.Errorf("%s:%d: Down section before Up", name, line))
			}
			down = true
		case "-- +goose StatementBegin":
			open++
			if open > 1 {
				problems = multierr.Append(problems, fmt.Errorf("%s:%d: nested StatementBegin", name, line))
			}
		case "-- +goose StatementEnd":
			if open == 0 {
				problems = multierr.Append(problems, fmt.Errorf("%s:%d: StatementEnd without StatementBegin", name, line))
				continue
			}
			open--
		}
	}
	if err := scanner.Err(); err != nil {
		return multierr.Append(problems, fmt.Errorf("%s: %w", name, err))
	}

	if !up {
		problems = multierr.Append(problems, fmt.Errorf("%s: missing \"-- +goose Up\"", name))
	}
	if !down {
		problems = multierr.Append(problems, fmt.Errorf("%s: missing \"-- +goose Down\"", name))
	}
	if open != 0 {
		problems = multierr.Append(problems, fmt.Errorf("%s: unterminated StatementBegin", name))
	}
	return problems
}
