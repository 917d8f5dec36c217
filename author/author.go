// Package author renders the control files exchanged with the external
// contingency tools. Every renderer is a pure function of its inputs so the
// output can be compared byte-for-byte against golden text; writing the bytes
// to disk is a separate step (Write).
package author

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/gridops-tools/ctgrun/iox"
)

// Artifact is a renderable control file.
type Artifact interface {
	Bytes() ([]byte, error)
}

// ErrUnquotable is returned when a value cannot be embedded in a quoted field.
var ErrUnquotable = errors.New("value cannot be quoted")

// Write renders a and writes it to name on fs. A failed write leaves no file behind.
func Write(fs billy.Filesystem, name string, a Artifact, perm os.FileMode) error {
	data, err := a.Bytes()
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return iox.WriteFile(fs, name, data, perm)
}

// quote wraps v in double quotes. Values containing a double quote or a line
// break have no representation in the tools' quoted-string syntax.
func quote(field, v string) (string, error) {
	if strings.ContainsAny(v, "\"\r\n") {
		return "", fmt.Errorf("%w: %s %q contains a double quote or line break", ErrUnquotable, field, v)
	}
	return `"` + v + `"`, nil
}
