package hoststore

import (
	"io"
	"os"
	"time"
)

// growPollInterval is the sleep between polls of a growing input file's
// length once EOF has been reached, per the grow-poll sleep loop's 50 ms
// interval.
const growPollInterval = 50 * time.Millisecond

// StdioPolicy selects how a Store's stdin/stdout/stderr are wired.
type StdioPolicy struct {
	// InheritStdio, when true, connects the component directly to the
	// embedder's own stdio; used for the top-level CLI.
	InheritStdio bool

	// SessionDir, when InheritStdio is false, is the per-invocation
	// directory (<out_dir>/<id>) stdio files are written under.
	SessionDir string

	// Stdin, when true and InheritStdio is false, opens SessionDir/in as a
	// growing file for stdin.
	Stdin bool
}

// Stdio bundles the three streams a Store wires for one invocation.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	closers []io.Closer
}

// Close releases any files opened for this Stdio bundle.
func (s *Stdio) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build realizes policy into a concrete Stdio bundle.
func (policy StdioPolicy) Build() (*Stdio, error) {
	if policy.InheritStdio {
		return &Stdio{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}, nil
	}

	if err := os.MkdirAll(policy.SessionDir, 0o755); err != nil {
		return nil, err
	}

	stdio := &Stdio{}

	outFile, err := os.Create(sessionPath(policy.SessionDir, "out"))
	if err != nil {
		return nil, err
	}
	stdio.Stdout = outFile
	stdio.closers = append(stdio.closers, outFile)

	errFile, err := os.Create(sessionPath(policy.SessionDir, "err"))
	if err != nil {
		stdio.Close()
		return nil, err
	}
	stdio.Stderr = errFile
	stdio.closers = append(stdio.closers, errFile)

	if policy.Stdin {
		inPath := sessionPath(policy.SessionDir, "in")
		if _, err := os.Create(inPath); err != nil {
			stdio.Close()
			return nil, err
		}
		inFile, err := os.Open(inPath)
		if err != nil {
			stdio.Close()
			return nil, err
		}
		stdio.Stdin = &growingFileReader{f: inFile}
		stdio.closers = append(stdio.closers, inFile)
	}

	return stdio, nil
}

func sessionPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + string(os.PathSeparator) + name
}

// growingFileReader implements the growing-file stdin policy: on EOF,
// poll the file's length every growPollInterval and resume reading as
// soon as new bytes appear, rather than signaling end-of-stream.
type growingFileReader struct {
	f *os.File
}

func (g *growingFileReader) Read(p []byte) (int, error) {
	for {
		n, err := g.f.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == io.EOF {
			time.Sleep(growPollInterval)
			continue
		}
		return n, err
	}
}
