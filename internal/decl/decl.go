// Package decl parses the process assembly declaration: a sectioned
// key-value file naming the middleware pipeline, the terminal application,
// the listener, the logging topology, and the instrumentation hooks.
//
// The declaration is parsed once at startup and the resulting specs are
// read-only for the life of the process. Changing behavior means editing
// the file and restarting.
package decl

// PipelineSpec is an ordered list of component names. All but exactly one
// must name filters; the one application name terminates the chain.
// Declared order is execution order. Duplicates are legal and re-apply
// the filter.
type PipelineSpec struct {
	Name       string
	Components []string
}

// FilterSpec names a middleware component and the registry reference
// (the `use` key) that resolves it to a factory.
type FilterSpec struct {
	Name string
	Use  string

	// Extra holds any additional keys from the filter section, passed
	// through to the factory (e.g. prefix for proxy-prefix).
	Extra map[string]string
}

// AppSpec names the terminal application and its factory reference.
type AppSpec struct {
	Name  string
	Use   string
	Extra map[string]string
}

// ServerSpec describes a listener: which server implementation to use and
// where to bind.
type ServerSpec struct {
	Name  string
	Use   string
	Host  string
	Port  int
	Extra map[string]string
}

// FormatterSpec is a named log record template with %(field)s placeholders.
type FormatterSpec struct {
	Name   string
	Format string
}

// HandlerSpec is a named log sink: a severity floor, a sink class, its
// positional constructor arguments, and the formatter it renders with.
type HandlerSpec struct {
	Name      string
	Level     string
	Class     string
	Args      []string
	Formatter string
}

// LoggerSpec is a named entry in the dotted logger hierarchy.
type LoggerSpec struct {
	Name      string
	Level     string
	Handlers  []string
	Qualname  string
	Propagate bool
}

// HookSpec maps an instrumentation target to an entry point. Hooks are
// best effort: a hook that cannot be resolved is skipped, never fatal.
type HookSpec struct {
	Target  string
	Enabled bool
	Execute string
}

// Declaration is the parsed form of the whole file.
type Declaration struct {
	Pipelines  map[string]PipelineSpec
	Filters    map[string]FilterSpec
	Apps       map[string]AppSpec
	Servers    map[string]ServerSpec
	Formatters map[string]FormatterSpec
	Handlers   map[string]HandlerSpec
	Loggers    map[string]LoggerSpec
	Hooks      []HookSpec
}
