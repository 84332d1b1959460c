package migrate

import (
	"bufio"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Validate checks every *.sql file in fsys: the goose file name layout,
// unique versions, and balanced annotations with Up before Down.
func Validate(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no migrations found")
	}

	seen := make(map[string]string, len(names))
	for _, name := range names {
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		if err := checkAnnotations(fsys, name); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

// ValidateDir validates migrations on disk; "" validates the embedded set.
func ValidateDir(dir string) error {
	return Validate(Files(dir))
}

func checkAnnotations(fsys fs.FS, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	var up, down, open int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		switch strings.TrimSpace(sc.Text()) {
		case "-- +goose Up":
			up++
			if down > 0 {
				return fmt.Errorf("goose Up annotation after Down")
			}
		case "-- +goose Down":
			down++
		case "-- +goose StatementBegin":
			open++
			if open > 1 {
				return fmt.Errorf("nested StatementBegin")
			}
		case "-- +goose StatementEnd":
			open--
			if open < 0 {
				return fmt.Errorf("StatementEnd without StatementBegin")
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	switch {
	case up != 1:
		return fmt.Errorf("expected one \"-- +goose Up\", found %d", up)
	case down != 1:
		return fmt.Errorf("expected one \"-- +goose Down\", found %d", down)
	case open != 0:
		return fmt.Errorf("unterminated StatementBegin")
	}
	return nil
}
