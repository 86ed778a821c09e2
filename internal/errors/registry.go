package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// checkDoc is appended to every manifest validation failure.
const checkDoc = "Please check documentation in README.MD."

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E119)
	// ============================================

	"E100": {
		Category:   CategoryConfig,
		Message:    "`package.json` not found",
		Suggestion: "Run nodebuilder from the project root or pass --dir",
	},
	"E101": {
		Category:   CategoryConfig,
		Message:    "`package.json` could not be parsed",
		Suggestion: "Check that package.json is valid JSON",
	},
	"E102": {
		Category:   CategoryConfig,
		Message:    "`builder` property is missing in `package.json`.",
		Suggestion: checkDoc,
	},
	"E103": {
		Category:   CategoryConfig,
		Message:    "`builder.dirs` property is missing in `package.json`.",
		Suggestion: checkDoc,
	},
	"E104": {
		Category:   CategoryConfig,
		Message:    "`name` is empty or not a string in `package.json`.",
		Suggestion: checkDoc,
	},
	"E105": {
		Category:   CategoryConfig,
		Message:    "`version` is empty or not a string in `package.json`.",
		Suggestion: checkDoc,
	},
	"E106": {
		Category:   CategoryConfig,
		Message:    "`builder.entry` is empty or not a string in `package.json`.",
		Suggestion: checkDoc,
	},
	"E107": {
		Category:   CategoryConfig,
		Message:    "`builder.node` is empty or not a string in `package.json`.",
		Suggestion: checkDoc,
	},
	"E108": {
		Category:   CategoryConfig,
		Message:    "`builder.dirs.build` is empty or not a string in `package.json`.",
		Suggestion: checkDoc,
	},
	"E109": {
		Category:   CategoryConfig,
		Message:    "`builder.dirs.src` is empty or not a string in `package.json`.",
		Suggestion: checkDoc,
	},
	"E110": {
		Category:   CategoryConfig,
		Message:    "Unknown environment in `builder.environments`.",
		Suggestion: "Supported environments: linux-x64, windows-x64, docker",
	},
	"E111": {
		Category:   CategoryConfig,
		Message:    "Invalid `builder.docker.restart` policy.",
		Suggestion: "Supported policies: no, always, on-failure, unless-stopped",
	},
	"E112": {
		Category:   CategoryConfig,
		Message:    "Copy rule needs non-empty `from` and `to`.",
		Suggestion: checkDoc,
	},
	"E113": {
		Category: CategoryConfig,
		Message:  "`builder` section does not match the expected shape",
		Detail:   "A field has the wrong JSON type.",
	},
	"E114": {
		Category:   CategoryConfig,
		Message:    "`builder.dirs.temp` must not be the build, source or project directory.",
		Suggestion: "Remove `builder.dirs.temp` to use <build>/temp",
	},
	"E115": {
		Category:   CategoryConfig,
		Message:    "`builder.dirs.build` must not contain the project or source directory.",
		Detail:     "The build directory is emptied at the start of every build.",
		Suggestion: checkDoc,
	},

	// ============================================
	// Build Errors (E200-E219)
	// ============================================

	"E200": {
		Category: CategoryBuild,
		Message:  "Failed to prepare build directory",
	},
	"E201": {
		Category: CategoryBuild,
		Message:  "Failed to copy file",
	},
	"E202": {
		Category: CategoryBuild,
		Message:  "Failed to write artifact",
	},
	"E203": {
		Category: CategoryBuild,
		Message:  "Failed to remove temporary directory",
	},
	"E204": {
		Category: CategoryBuild,
		Message:  "Failed to publish build output",
	},
	"E205": {
		Category: CategoryBuild,
		Message:  "Failed to write build report",
	},

	// ============================================
	// Toolchain Errors (E300-E319)
	// ============================================

	"E300": {
		Category:   CategoryToolchain,
		Message:    "Bundler not found",
		Detail:     "Neither esbuild nor npx is available on PATH.",
		Suggestion: "Install Node.js from https://nodejs.org or run `npm install -g esbuild`",
	},
	"E301": {
		Category: CategoryToolchain,
		Message:  "Bundling failed",
	},
	"E302": {
		Category:   CategoryToolchain,
		Message:    "Compiler not found",
		Detail:     "Neither nexe nor npx is available on PATH.",
		Suggestion: "Install Node.js from https://nodejs.org or run `npm install -g nexe`",
	},
	"E303": {
		Category: CategoryToolchain,
		Message:  "Binary compilation failed",
	},
	"E304": {
		Category:   CategoryToolchain,
		Message:    "WinSW wrapper unavailable",
		Suggestion: "Pass --winsw with a local WinSW.NET4.exe or allow downloads",
	},
	"E305": {
		Category: CategoryToolchain,
		Message:  "File watcher failed",
	},

	// ============================================
	// Command Line Errors (E400-E419)
	// ============================================
	"E400": {
		Category:   CategoryCLI,
		Message:    "Command failed",
		Suggestion: "Run `nodebuilder --help` for usage",
	},
	"E401": {
		Category: CategoryCLI,
		Message:  "Build interrupted",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
