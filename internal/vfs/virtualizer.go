package vfs

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/appstract/appstract/internal/log"
	"github.com/appstract/appstract/internal/logfields"
	"github.com/appstract/appstract/internal/winpath"
)

// Classification is the verdict of [Virtualizer.Classify].
type Classification int

const (
	NotVirtualizable Classification = iota
	Virtualizable
)

func (c Classification) String() string {
	if c == Virtualizable {
		return "virtualizable"
	}
	return "not-virtualizable"
}

// doubledDevicePrefix is the device namespace as written in a C string
// literal that was never unescaped, used for changers and tape drives.
const doubledDevicePrefix = `\\\\.\\`

// Virtualizer classifies intercepted paths and redirects them below a
// virtual root. It holds no mutable state; the only I/O it performs is the
// existence probe in Redirect.
type Virtualizer struct {
	root   string
	rules  *RuleTable
	policy FallbackPolicy
	fs     FileSystem
}

// NewVirtualizer returns a Virtualizer for an already normalized root.
func NewVirtualizer(root string, rules *RuleTable, policy FallbackPolicy, fs FileSystem) *Virtualizer {
	if rules == nil {
		rules = NewRuleTableFromRules()
	}
	if policy == nil {
		policy = DefaultFallbackPolicy
	}
	if fs == nil {
		fs = HostFileSystem{}
	}
	return &Virtualizer{root: root, rules: rules, policy: policy, fs: fs}
}

// Classify decides whether p may be redirected. Device namespace paths
// (disks, volumes, changers, tapes, COM ports, named pipes), the console
// pseudo files and paths already inside the virtual root are not
// virtualizable. A volume opened through its drive letter (`\\.\C:\`) is.
func (v *Virtualizer) Classify(p string) Classification {
	if p == "" {
		return NotVirtualizable
	}
	if strings.HasPrefix(p, winpath.DevicePrefix) &&
		!(len(p) >= 7 && p[5] == ':' && p[6] == '\\') {
		return NotVirtualizable
	}
	if strings.HasPrefix(p, doubledDevicePrefix) {
		return NotVirtualizable
	}
	if strings.EqualFold(p, "CONIN$") || strings.EqualFold(p, "CONOUT$") {
		return NotVirtualizable
	}
	if v.inRoot(p) {
		return NotVirtualizable
	}
	return Virtualizable
}

// inRoot is a plain case-insensitive prefix test against the lower-cased
// root, so `C:\Sandbox\App10` is inside a root of `c:\sandbox\app1`.
func (v *Virtualizer) inRoot(p string) bool {
	if v.root == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(p), v.root) ||
		strings.HasPrefix(strings.ToLower(winpath.Canonical(p)), v.root)
}

// Redirect returns the path the intercepted operation must use. A request
// whose path is not virtualizable is returned unchanged, which makes
// Redirect idempotent on its own output.
func (v *Virtualizer) Redirect(req FileRequest) string {
	if v.Classify(req.Path) == NotVirtualizable {
		return req.Path
	}
	redirected := winpath.Join(v.root, v.rules.Rewrite(req.Path))
	result := redirected
	if !exists(v.fs, redirected) && !v.policy(req) {
		result = req.Path
	}
	if log.L.Logger.IsLevelEnabled(logrus.TraceLevel) {
		log.L.WithFields(logrus.Fields{
			logfields.Path:        req.Path,
			logfields.Resource:    req.Kind.String(),
			logfields.Disposition: req.Disposition.String(),
			logfields.Target:      result,
			logfields.Redirected:  result != req.Path,
		}).Trace("redirected file request")
	}
	return result
}
