package intake

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/prioflow/pkg/task"
)

// SliceSource yields a fixed list of tasks.
type SliceSource struct {
	tasks []task.Task
	pos   int
}

// NewSliceSource creates a source over tasks. The slice is not copied.
func NewSliceSource(tasks []task.Task) *SliceSource {
	return &SliceSource{tasks: tasks}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (task.Task, error) {
	if err := ctx.Err(); err != nil {
		return task.Task{}, err
	}
	if s.pos >= len(s.tasks) {
		return task.Task{}, io.EOF
	}
	t := s.tasks[s.pos]
	s.pos++
	return t, nil
}

// ScannerSource reads the interactive protocol: a task count N followed by
// N whitespace separated "name priority" pairs. Prompts are written to the
// prompt writer when it is non-nil.
type ScannerSource struct {
	sc     *bufio.Scanner
	prompt io.Writer

	declared int
	started  bool
	read     int
}

// NewScannerSource creates a ScannerSource reading from r.
func NewScannerSource(r io.Reader, prompt io.Writer) *ScannerSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	sc.Split(bufio.ScanWords)
	return &ScannerSource{sc: sc, prompt: prompt}
}

// Next implements Source. Running out of input before N tasks is a normal
// end; tokens after the Nth task are never read.
func (s *ScannerSource) Next(ctx context.Context) (task.Task, error) {
	if err := ctx.Err(); err != nil {
		return task.Task{}, err
	}
	if !s.started {
		s.started = true
		s.say("Enter the number of tasks: ")
		n, err := s.number("task count")
		if err != nil {
			return task.Task{}, err
		}
		if n < 0 {
			return task.Task{}, fmt.Errorf("task count %d is negative", n)
		}
		s.declared = n
	}
	if s.read >= s.declared {
		return task.Task{}, io.EOF
	}

	s.say(fmt.Sprintf("Task %d (enter task name): ", s.read+1))
	name, err := s.word()
	if err != nil {
		return task.Task{}, err
	}
	s.say("Priority (1=High, 2=Medium, 3=Low): ")
	p, err := s.number("priority")
	if err != nil {
		return task.Task{}, err
	}
	s.read++
	return task.New(name, task.Priority(p)), nil
}

// Declared returns the task count read from the input, or 0 before the
// first call to Next.
func (s *ScannerSource) Declared() int {
	return s.declared
}

func (s *ScannerSource) say(msg string) {
	if s.prompt != nil {
		io.WriteString(s.prompt, msg)
	}
}

func (s *ScannerSource) word() (string, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.sc.Text(), nil
}

func (s *ScannerSource) number(what string) (int, error) {
	w, err := s.word()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(w)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, w, err)
	}
	return n, nil
}

// taskFile is the YAML layout accepted by YAMLSource.
type taskFile struct {
	Tasks []struct {
		Name     string `yaml:"name"`
		Priority int    `yaml:"priority"`
	} `yaml:"tasks"`
}

// NewYAMLSource decodes a document of the form
//
//	tasks:
//	  - name: deploy
//	    priority: 1
//
// and returns a source over its tasks in document order.
func NewYAMLSource(r io.Reader) (*SliceSource, error) {
	var f taskFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	tasks := make([]task.Task, 0, len(f.Tasks))
	for _, t := range f.Tasks {
		tasks = append(tasks, task.New(t.Name, task.Priority(t.Priority)))
	}
	return NewSliceSource(tasks), nil
}

// FileSource is a Source backed by an open file.
type FileSource struct {
	Source
	f *os.File
}

// Close closes the underlying file.
func (fs *FileSource) Close() error {
	return fs.f.Close()
}

// OpenFile opens a task file. Files ending in .yaml or .yml are decoded as
// YAML; anything else is read with the count-prefixed scanner protocol
// without prompts.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		src, err := NewYAMLSource(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &FileSource{Source: src, f: f}, nil
	default:
		return &FileSource{Source: NewScannerSource(f, nil), f: f}, nil
	}
}
