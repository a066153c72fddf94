package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Assets is the directory holding task/hint/answer pictures.
type Assets struct {
	Dir string
}

// Exists reports whether name is a regular file in the asset directory.
func (a Assets) Exists(name string) bool {
	if a.Dir == "" || name == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(a.Dir, filepath.Base(name)))
	return err == nil && info.Mode().IsRegular()
}

// Bundle is one ingestion unit: a decoded table plus the assets it refers to.
type Bundle struct {
	Table  Table
	Assets Assets
}

// Open reads a spreadsheet file and pairs it with assetsDir. If path is a
// directory OpenDir is used instead and assetsDir is ignored.
func Open(path, assetsDir string) (Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Bundle{}, &MalformedError{Source: path, Err: err}
	}
	if info.IsDir() {
		return OpenDir(path)
	}
	t, err := ReadTable(path)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Table: t, Assets: Assets{Dir: assetsDir}}, nil
}

// OpenDir uses the first spreadsheet (by name) in dir as the table. Assets
// come from dir/images when that exists, otherwise from dir itself.
func OpenDir(dir string) (Bundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Bundle{}, &MalformedError{Source: dir, Err: err}
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsSpreadsheet(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return Bundle{}, &MalformedError{Source: dir, Err: errors.New("no spreadsheet in bundle directory")}
	}
	sort.Strings(names)

	t, err := ReadTable(filepath.Join(dir, names[0]))
	if err != nil {
		return Bundle{}, err
	}
	assets := dir
	if info, err := os.Stat(filepath.Join(dir, "images")); err == nil && info.IsDir() {
		assets = filepath.Join(dir, "images")
	}
	return Bundle{Table: t, Assets: Assets{Dir: assets}}, nil
}

func (b Bundle) String() string {
	return fmt.Sprintf("%s (%d rows, assets %s)", b.Table.Source, len(b.Table.Rows), b.Assets.Dir)
}
