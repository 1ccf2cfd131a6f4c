// Package version хранит сведения о сборке marketplace.
package version

// Заполняются через -ldflags "-X .../internal/version.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки; её отдаёт /healthz.
func GetVersion() string { return version }
