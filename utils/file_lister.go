package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

// ListRasters enumerates the regular files of dir whose extension is ext
// (case insensitive). When pattern is not empty it is evaluated for each
// candidate with the variable "path" and must yield a boolean. Hidden
// files are skipped, which also hides staged outputs of a running write.
func ListRasters(dir, ext, pattern string) ([]string, error) {
	expr, err := ParsePatternExpression(pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern expression: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read dir %s: %v", ErrInvalidInput, dir, err)
	}

	var files []string
	for _, ent := range entries {
		name := ent.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}

		filePath := filepath.Join(dir, name)
		mode := ent.Type()
		if mode&os.ModeSymlink != 0 {
			fStat, err := os.Stat(filePath)
			if err != nil {
				continue
			}
			mode = fStat.Mode()
		}
		if !mode.IsRegular() {
			continue
		}

		if expr != nil {
			ok, err := evaluatePatternExpression(expr, filePath)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		files = append(files, filePath)
	}
	sort.Strings(files)
	return files, nil
}

func evaluatePatternExpression(expr *goeval.EvaluableExpression, filePath string) (bool, error) {
	result, err := expr.Evaluate(map[string]interface{}{"path": filePath})
	if err != nil {
		return false, fmt.Errorf("pattern expression: %v", err)
	}

	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("pattern expression: result '%v' is not boolean", result)
	}
	return val, nil
}
