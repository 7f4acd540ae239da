// Package envpath builds child-process environments. GUI-launched
// processes inherit a minimal PATH that is missing the entries a user's
// shell startup files add, so agent binaries installed via homebrew, npm,
// or language version managers are not found. ExtendPath closes that gap
// by appending well-known install locations.
package envpath

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// commonInstallDirs lists locations that shell startup files typically add
// to PATH. Only directories that exist are appended.
func commonInstallDirs() []string {
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "windows" {
		return []string{
			filepath.Join(home, "AppData", "Roaming", "npm"),
			filepath.Join(home, "AppData", "Local", "Programs"),
			filepath.Join(home, ".bun", "bin"),
		}
	}
	return []string{
		"/usr/local/bin",
		"/opt/homebrew/bin",
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, "bin"),
		filepath.Join(home, ".npm-global", "bin"),
		filepath.Join(home, ".bun", "bin"),
		filepath.Join(home, ".cargo", "bin"),
		filepath.Join(home, "go", "bin"),
	}
}

// ExtendPath returns pathValue with common install directories appended.
// Existing entries are never duplicated or reordered.
func ExtendPath(pathValue string) string {
	sep := string(os.PathListSeparator)
	existing := make(map[string]bool)
	for _, p := range strings.Split(pathValue, sep) {
		existing[p] = true
	}

	extended := pathValue
	for _, dir := range commonInstallDirs() {
		if existing[dir] {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		extended += sep + dir
		existing[dir] = true
	}
	return extended
}

// ChildEnv returns the full parent environment with PATH extended. This is
// the environment for agent child processes, which need their own auxiliary
// variables (API keys, config paths) in addition to a usable PATH.
func ChildEnv() []string {
	env := os.Environ()
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = "PATH=" + ExtendPath(kv[len("PATH="):])
			return env
		}
	}
	return append(env, "PATH="+ExtendPath(""))
}

// LoginShellEnv returns the curated minimal environment for a bare
// terminal session. The shell's own startup files are responsible for
// building the real PATH; handing the shell the full parent environment
// risks duplicate or conflicting PATH segments once rc files run.
func LoginShellEnv() []string {
	keep := []string{"HOME", "USER", "LOGNAME", "SHELL", "TERM", "LANG", "LC_ALL", "TMPDIR"}
	var env []string
	for _, key := range keep {
		if v := os.Getenv(key); v != "" {
			env = append(env, key+"="+v)
		}
	}
	if os.Getenv("TERM") == "" {
		env = append(env, "TERM=xterm-256color")
	}
	// A conservative baseline PATH; rc files extend it.
	env = append(env, "PATH=/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin")
	return env
}
