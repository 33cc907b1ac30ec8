package runner

import (
	"fmt"

	"github.com/nexus-run/nexus/internal/core"
)

// wrapPrivilege wraps shell under the host's escalation method as a
// prefix on the remote side, per spec §4.5(b). runAsUser (Command.RunAsUser)
// takes precedence as a `sudo -u user` wrap when set; cmd.Sudo alone uses
// the host's configured become_method.
func wrapPrivilege(shell string, host core.Host, sudo bool, runAsUser string) string {
	switch {
	case runAsUser != "":
		return fmt.Sprintf("sudo -u %s -n -- /bin/sh -c %s", runAsUser, quote(shell))
	case sudo || host.Become:
		method := host.BecomeMethod
		if method == "" {
			method = core.BecomeSudo
		}
		user := host.BecomeUser
		return wrapBecome(shell, method, user)
	default:
		return shell
	}
}

func wrapBecome(shell string, method core.BecomeMethod, user string) string {
	switch method {
	case core.BecomeSu:
		if user == "" {
			user = "root"
		}
		return fmt.Sprintf("su %s -c %s", user, quote(shell))
	case core.BecomeDoas:
		if user != "" {
			return fmt.Sprintf("doas -u %s -- /bin/sh -c %s", user, quote(shell))
		}
		return fmt.Sprintf("doas -- /bin/sh -c %s", quote(shell))
	case core.BecomeSudo:
		fallthrough
	default:
		if user != "" {
			return fmt.Sprintf("sudo -u %s -n -- /bin/sh -c %s", user, quote(shell))
		}
		return fmt.Sprintf("sudo -n -- /bin/sh -c %s", quote(shell))
	}
}

// quote produces a single-quoted shell word, escaping embedded single
// quotes the POSIX way: close, escaped quote, reopen.
func quote(s string) string {
	out := "'"
	for _, r := range s {
		if r == '\'' {
			out += `'\''`
		} else {
			out += string(r)
		}
	}
	return out + "'"
}
