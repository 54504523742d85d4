// Package dataset loads train, section and usage records from files. A
// snapshot is either one YAML or JSON document with the keys trains,
// sections and train_sections, or a directory holding trains.csv,
// sections.csv and train_sections.csv.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/railsched/core/model"
)

// Format names accepted by Decode.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config points at the default snapshot served by the application.
type Config struct {
	Path string `json:"path"`
}

// Load reads the snapshot at path, dispatching on whether it is a directory
// or a .json/.yaml/.yml file, then validates it.
func Load(path string) (model.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Snapshot{}, err
	}
	var snap model.Snapshot
	if info.IsDir() {
		snap, err = LoadDir(path)
	} else {
		snap, err = LoadFile(path)
	}
	if err != nil {
		return model.Snapshot{}, err
	}
	if err := Validate(snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// LoadFile decodes a single JSON or YAML document.
func LoadFile(path string) (model.Snapshot, error) {
	format := FormatYAML
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
	default:
		return model.Snapshot{}, fmt.Errorf("dataset: unsupported file %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer func() { _ = f.Close() }()
	return Decode(f, format)
}

// Decode reads one document. YAML is normalized through JSON so both formats
// share the same field names and the same tolerant time parsing.
func Decode(r io.Reader, format string) (model.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.Snapshot{}, err
	}
	if format == FormatYAML {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return model.Snapshot{}, fmt.Errorf("dataset: parse yaml: %w", err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return model.Snapshot{}, fmt.Errorf("dataset: normalize yaml: %w", err)
		}
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("dataset: parse %s: %w", format, err)
	}
	return snap, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		u := sl.Current().Interface().(model.TrainSectionUsage)
		if u.Entry.Valid && u.Exit.Valid && u.Exit.Minutes < u.Entry.Minutes {
			sl.ReportError(u.Exit, "scheduled_exit_time", "Exit", "gtefield", "scheduled_entry_time")
		}
	}, model.TrainSectionUsage{})
	return v
}

// Validate checks every record and reports all problems at once, each
// prefixed with the record's collection and position.
func Validate(snap model.Snapshot) error {
	var errs []error
	check := func(kind string, i int, v any) {
		if err := validate.Struct(v); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					errs = append(errs, fmt.Errorf("%s[%d].%s: failed %q", kind, i, fe.Field(), fe.Tag()))
				}
				return
			}
			errs = append(errs, fmt.Errorf("%s[%d]: %w", kind, i, err))
		}
	}
	for i, t := range snap.Trains {
		check("trains", i, t)
	}
	for i, s := range snap.Sections {
		check("sections", i, s)
	}
	for i, u := range snap.Usages {
		check("train_sections", i, u)
	}
	return errors.Join(errs...)
}
