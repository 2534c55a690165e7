// Package workspace manages the per-submission scratch directory: source
// files, the compile diagnostics log, and the compiled artifact.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Workspace is an exclusively owned filesystem directory for one
// submission's sources, compile log, and artifact.
type Workspace struct {
	Dir    string
	logger *zap.Logger
}

// ArtifactName is the compiled executable's fixed filename.
const ArtifactName = "program"

// CompileErrorsName is the file compiler stderr is captured into.
const CompileErrorsName = "compile_errors.txt"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// New creates a unique workspace directory under root, named with the
// process id and a random disambiguator so concurrent sessions in the same
// process never collide.
func New(root string, logger *zap.Logger) (*Workspace, error) {
	dir := filepath.Join(root,
		fmt.Sprintf("socket_sandbox_%d", os.Getpid()),
		fmt.Sprintf("run_%d_%s", os.Getpid(), uuid.NewString()),
	)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace %s: %w", dir, err)
	}
	logger.Debug("created workspace", zap.String("dir", dir))
	return &Workspace{Dir: dir, logger: logger}, nil
}

// ArtifactPath returns the path to the compiled executable.
func (w *Workspace) ArtifactPath() string {
	return filepath.Join(w.Dir, ArtifactName)
}

// CompileErrorsPath returns the path to the captured compiler diagnostics.
func (w *Workspace) CompileErrorsPath() string {
	return filepath.Join(w.Dir, CompileErrorsName)
}

// WriteSingleSource writes code as program.cpp, BOM-prefixed, in binary
// mode, and returns its path.
func (w *Workspace) WriteSingleSource(code string) (string, error) {
	path := filepath.Join(w.Dir, "program.cpp")
	if err := writeBOMFile(path, code); err != nil {
		return "", err
	}
	return path, nil
}

// SanitizeFilename normalizes backslashes to forward slashes and, for any
// name containing a non-ASCII byte, replaces it with a synthetic
// file_<i><ext> name preserving only the trailing extension.
func SanitizeFilename(name string, index int) string {
	safe := strings.ReplaceAll(name, `\`, "/")

	nonascii := false
	for i := 0; i < len(safe); i++ {
		if safe[i] > 127 {
			nonascii = true
			break
		}
	}
	if !nonascii {
		return safe
	}

	ext := ".cpp"
	if p := strings.LastIndexByte(safe, '.'); p != -1 {
		ext = safe[p:]
	}
	return fmt.Sprintf("file_%d%s", index, ext)
}

// IsCompilableSource reports whether name's extension marks it as a C++
// translation unit to pass to the compiler.
func IsCompilableSource(name string) bool {
	return strings.HasSuffix(name, ".cpp") || strings.HasSuffix(name, ".cxx") || strings.HasSuffix(name, ".cc")
}

// ContainsMain reports whether content looks like it defines main(),
// scanning for the same three substrings the original does.
func ContainsMain(content string) bool {
	return strings.Contains(content, "int main(") ||
		strings.Contains(content, "void main(") ||
		strings.Contains(content, "main()")
}

// WriteMultiFile materializes a full multi-file submission: each entry is
// sanitized, written (BOM-prefixed for compilable sources), and the
// ordered compile list is built with the first main()-bearing file moved
// to the head — ties broken by enumeration order over files' iteration,
// matching the original's insert-at-front-on-first-match behavior.
//
// Go map iteration order is randomized, so the caller must supply names in
// a stable order (e.g. sorted) for the "ties broken by enumeration order"
// guarantee to be reproducible across runs; WriteMultiFile itself just
// walks the slice it's given.
func (w *Workspace) WriteMultiFile(names []string, files map[string]string) (compileList []string, err error) {
	hasMain := false

	for i, name := range names {
		content := files[name]
		actual := SanitizeFilename(name, i)

		fp := filepath.Join(w.Dir, actual)
		if dir := filepath.Dir(fp); dir != w.Dir {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating parent dir for %s: %w", actual, err)
			}
		}

		if IsCompilableSource(actual) {
			if err := writeBOMFile(fp, content); err != nil {
				return nil, err
			}
			if ContainsMain(content) && !hasMain {
				compileList = append([]string{actual}, compileList...)
				hasMain = true
			} else {
				compileList = append(compileList, actual)
			}
		} else {
			if err := os.WriteFile(fp, []byte(content), 0644); err != nil {
				return nil, fmt.Errorf("writing %s: %w", actual, err)
			}
		}

		w.logger.Debug("created file", zap.String("name", actual))
	}

	return compileList, nil
}

func writeBOMFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating source file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("writing BOM to %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("writing source to %s: %w", path, err)
	}
	return nil
}

// Cleanup removes the workspace tree recursively. It is idempotent;
// failures are logged but never returned, matching the source's
// best-effort cleanup contract.
func (w *Workspace) Cleanup() {
	if w.Dir == "" {
		return
	}
	if _, err := os.Stat(w.Dir); os.IsNotExist(err) {
		return
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		w.logger.Warn("failed to clean up workspace", zap.String("dir", w.Dir), zap.Error(err))
		return
	}
	w.logger.Debug("cleaned up workspace", zap.String("dir", w.Dir))
}
