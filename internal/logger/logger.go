package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Level is the minimum severity that gets printed.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	fatalLevel
)

const (
	fatalLabel = "[FATAL]"
	errorLabel = "[ERROR]"
	warnLabel  = "[WARN ]"
	infoLabel  = "[INFO ]"
	debugLabel = "[DEBUG]"
)

var mu sync.Mutex

var (
	std      = log.New(os.Stderr, "", log.LstdFlags)
	out      = io.Writer(os.Stderr)
	minLevel = InfoLevel
	colored  = true
	renderer = lipgloss.NewRenderer(os.Stderr)
)

var labelColors = map[Level]lipgloss.Color{
	DebugLevel: "8",
	InfoLevel:  "12",
	WarnLevel:  "11",
	ErrorLevel: "9",
	fatalLevel: "13",
}

var labels = map[Level]string{
	DebugLevel: debugLabel,
	InfoLevel:  infoLabel,
	WarnLevel:  warnLabel,
	ErrorLevel: errorLabel,
	fatalLevel: fatalLabel,
}

// ParseLevel maps debug, info, warn or error to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
}

// SetLevel sets the minimum level printed.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// SetOutput redirects the logger to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	std.SetOutput(w)
	renderer = newRenderer()
}

// SetColor turns colored labels on or off.
func SetColor(on bool) {
	mu.Lock()
	defer mu.Unlock()
	colored = on
	renderer = newRenderer()
}

func newRenderer() *lipgloss.Renderer {
	if !colored {
		return lipgloss.NewRenderer(out, termenv.WithProfile(termenv.Ascii))
	}
	return lipgloss.NewRenderer(out)
}

// mylog prepends the level label to log.Printf.
// Arguments are handled in the manner of [fmt.Printf].
func mylog(level Level, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level < minLevel {
		return
	}
	label := renderer.NewStyle().Bold(true).Foreground(labelColors[level]).Render(labels[level])
	std.Printf(label+" "+format, args...)
}

// Fatal prints with a fatal label and exits with status 1.
// Arguments are handled in the manner of [fmt.Printf].
func Fatal(format string, args ...interface{}) {
	mylog(fatalLevel, format, args...)
	os.Exit(1)
}

// Error prints to the standard logger, adding an error label.
// Arguments are handled in the manner of [fmt.Printf].
func Error(format string, args ...interface{}) {
	mylog(ErrorLevel, format, args...)
}

// Warn prints to the standard logger, adding a warn label.
// Arguments are handled in the manner of [fmt.Printf].
func Warn(format string, args ...interface{}) {
	mylog(WarnLevel, format, args...)
}

// Info prints to the standard logger, adding an info label.
// Arguments are handled in the manner of [fmt.Printf].
func Info(format string, args ...interface{}) {
	mylog(InfoLevel, format, args...)
}

// Debug prints to the standard logger, adding a debug label.
// Arguments are handled in the manner of [fmt.Printf].
func Debug(format string, args ...interface{}) {
	mylog(DebugLevel, format, args...)
}
