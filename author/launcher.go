package author

import (
	"errors"
	"fmt"
	"strings"
)

// Launcher is the shell script that starts the reporting tool in batch mode.
type Launcher struct {
	// InstallDir is the reporting tool installation directory.
	InstallDir string
	// Java is the JVM launcher binary.
	Java string
	// MainClass is the tool's batch entry point.
	MainClass string
	// Descriptor is the report descriptor path passed to -batch.
	Descriptor string
}

// Environment variables exported by the launcher.
const (
	EnvPlotHome  = "PLOT_HOME"
	EnvClassPath = "CLASSPATH"
)

// Bytes renders the launcher script.
func (l Launcher) Bytes() ([]byte, error) {
	if l.InstallDir == "" || l.Java == "" || l.MainClass == "" || l.Descriptor == "" {
		return nil, errors.New("launcher requires install dir, java, main class and descriptor")
	}
	for _, f := range []struct{ name, val string }{
		{"install dir", l.InstallDir},
		{"java", l.Java},
		{"main class", l.MainClass},
		{"descriptor", l.Descriptor},
	} {
		if err := shellSafe(f.name, f.val); err != nil {
			return nil, err
		}
	}
	if strings.ContainsAny(l.MainClass, " \t") {
		return nil, fmt.Errorf("%w: main class %q contains whitespace", ErrUnquotable, l.MainClass)
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "export %s=\"%s\"\n", EnvPlotHome, l.InstallDir)
	fmt.Fprintf(&b, "export %s=\"%s/lib/*\"\n", EnvClassPath, l.InstallDir)
	fmt.Fprintf(&b, "exec \"%s\" -cp \"$%s\" %s -batch \"%s\"\n", l.Java, EnvClassPath, l.MainClass, l.Descriptor)
	return []byte(b.String()), nil
}

// shellSafe rejects characters that are live inside a double-quoted sh string.
func shellSafe(field, v string) error {
	if strings.ContainsAny(v, "\"$`\\\r\n") {
		return fmt.Errorf("%w: %s %q contains shell metacharacters", ErrUnquotable, field, v)
	}
	return nil
}
